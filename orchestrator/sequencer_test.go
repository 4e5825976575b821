package orchestrator

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollaborators(chain *fakeChain, compiler *fakeCompiler) Collaborators {
	return Collaborators{
		Compiler: compiler,
		Signer:   &fakeSigner{chain: chain, address: signerAddress},
		Reader:   chain,
	}
}

func TestRunFullSuccess(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	chain := newFakeChain(signerAddress)
	compiler := newPeripheryCompiler()

	result, err := Run(context.Background(), validConfig(dir), newCollaborators(chain, compiler))
	require.NoError(t, err)

	assert.Equal(RunCompleted, result.State)
	assert.Equal(ManifestPath(dir, "sepolia"), result.ManifestPath)
	assert.Equal(int64(OneBPTickSpacing), chain.tickSpacing[OneBPFee])
	assert.Len(chain.submitted, 9)
	for _, step := range result.Steps {
		assert.Equal(StepSucceeded, step.State, step.Name)
		assert.NotEqual(common.Hash{}, step.TxHash, step.Name)
	}

	// the fee tier call goes first and is the only non-creation
	first := chain.submitted[0]
	require.False(t, first.IsCreation())
	assert.Equal(factoryAddress, *first.To)
	assert.Equal("enableFeeAmount", first.Method)
	assert.Equal([]interface{}{big.NewInt(100), big.NewInt(1)}, first.Args)

	manifest, err := ReadManifest(result.ManifestPath)
	require.NoError(t, err)
	assert.Len(manifest, 8)
	assert.Equal([]string{
		"multicall2Address",
		"nftDescriptorLibraryAddress",
		"nonfungibleTokenPositionDescriptorAddress",
		"nonfungibleTokenPositionManagerAddress",
		"quoterV2Address",
		"swapRouter02Address",
		"tickLensAddress",
		"v3MigratorAddress",
	}, manifest.Keys())

	for _, key := range PeripheryManifestKeys() {
		address, err := resolverFor(result).Resolve(key.Step)
		require.NoError(t, err)
		assert.Equal(address, manifest[key.Key], key.Key)
	}

	// the descriptor is compiled against the library deployed just before it
	library := manifest["nftDescriptorLibraryAddress"]
	last := compiler.calls[len(compiler.calls)-1]
	linked, ok := last.Address(nftDescriptorSource, "NFTDescriptor")
	require.True(t, ok)
	assert.Equal(library, linked)

	descriptor := manifest["nonfungibleTokenPositionDescriptorAddress"]
	manager := findCreation(t, chain, StepNonfungiblePositionManager)
	assert.Equal([]interface{}{factoryAddress, weth9Address, descriptor}, manager.Args)

	label, err := AsciiStringToBytes32("ETH")
	require.NoError(t, err)
	assert.Equal([]interface{}{weth9Address, label}, findCreation(t, chain, StepNonfungibleTokenPositionDescriptor).Args)

	migrator := findCreation(t, chain, StepV3Migrator)
	assert.Equal(manifest["nonfungibleTokenPositionManagerAddress"], migrator.Args[2])
}

func TestRunOwnerMismatch(t *testing.T) {
	dir := t.TempDir()
	chain := newFakeChain(strangerAddress)
	compiler := newPeripheryCompiler()

	result, err := Run(context.Background(), validConfig(dir), newCollaborators(chain, compiler))
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepEnableFeeTier, stepErr.Step)
	assert.Equal(t, 1, stepErr.Ordinal)

	var failed *PreconditionFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, strangerAddress, failed.Actual)
	assert.Equal(t, signerAddress, failed.Expected)

	assert.Equal(t, RunAborted, result.State)
	assert.Empty(t, chain.submitted)
	assert.Empty(t, compiler.calls)
	assert.Equal(t, StepFailed, result.Steps[0].State)
	for _, step := range result.Steps[1:] {
		assert.Equal(t, StepPending, step.State, step.Name)
	}

	assert.Empty(t, result.ManifestPath)
	_, err = os.Stat(ManifestPath(dir, "sepolia"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunTransactionFailureKeepsPreviousManifest(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	previous := []byte(`{"stale":"manifest"}`)
	require.NoError(t, os.WriteFile(ManifestPath(dir, "sepolia"), previous, 0644))

	chain := newFakeChain(signerAddress)
	chain.revert[StepV3Migrator] = true

	result, err := Run(context.Background(), validConfig(dir), newCollaborators(chain, newPeripheryCompiler()))
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(StepV3Migrator, stepErr.Step)
	assert.Equal(7, stepErr.Ordinal)

	var txErr *TransactionFailureError
	require.True(t, errors.As(err, &txErr))
	assert.NotEqual(common.Hash{}, txErr.TxHash)

	assert.Equal(RunAborted, result.State)
	assert.Len(chain.submitted, 7)
	assert.Len(result.Bindings, 5)
	assert.Equal(StepPending, result.Steps[7].State)
	assert.Equal(StepPending, result.Steps[8].State)

	data, err := os.ReadFile(ManifestPath(dir, "sepolia"))
	require.NoError(t, err)
	assert.Equal(previous, data)
}

func TestRunRejectedSubmission(t *testing.T) {
	chain := newFakeChain(signerAddress)
	chain.rejectSubmit[StepMulticall] = errors.New("insufficient funds for gas * price + value")

	_, err := Run(context.Background(), validConfig(t.TempDir()), newCollaborators(chain, newPeripheryCompiler()))

	var txErr *TransactionFailureError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, StepMulticall, txErr.Step)
	assert.Equal(t, common.Hash{}, txErr.TxHash)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestRunSkipsEnabledFeeTier(t *testing.T) {
	chain := newFakeChain(signerAddress)
	chain.tickSpacing[OneBPFee] = OneBPTickSpacing

	result, err := Run(context.Background(), validConfig(t.TempDir()), newCollaborators(chain, newPeripheryCompiler()))
	require.NoError(t, err)

	assert.True(t, result.Steps[0].Skipped)
	assert.Equal(t, StepSucceeded, result.Steps[0].State)
	assert.Len(t, chain.submitted, 8)
	for _, req := range chain.submitted {
		assert.True(t, req.IsCreation())
	}
}

func TestRunFeeTierConflict(t *testing.T) {
	dir := t.TempDir()
	chain := newFakeChain(signerAddress)
	chain.tickSpacing[OneBPFee] = 7

	result, err := Run(context.Background(), validConfig(dir), newCollaborators(chain, newPeripheryCompiler()))
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepEnableFeeTier, stepErr.Step)

	var conflict *FeeTierConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, OneBPFee, conflict.Fee)
	assert.Equal(t, OneBPTickSpacing, conflict.Expected)
	assert.Equal(t, int64(7), conflict.Actual)

	assert.Equal(t, RunAborted, result.State)
	assert.False(t, result.Steps[0].Skipped)
	assert.Equal(t, StepFailed, result.Steps[0].State)
	assert.Empty(t, chain.submitted)
	assert.Equal(t, int64(7), chain.tickSpacing[OneBPFee])

	_, err = os.Stat(ManifestPath(dir, "sepolia"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunRecompileFailure(t *testing.T) {
	compiler := newPeripheryCompiler()
	compiler.err = errors.New("unable to find solc")

	chain := newFakeChain(signerAddress)
	_, err := Run(context.Background(), validConfig(t.TempDir()), newCollaborators(chain, compiler))

	var recompile *RecompileError
	require.True(t, errors.As(err, &recompile))

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepMulticall, stepErr.Step)
	assert.Len(t, chain.submitted, 1)
}

func TestRunInvalidConfig(t *testing.T) {
	chain := newFakeChain(signerAddress)
	cfg := validConfig(t.TempDir())
	cfg.Factory = "0x1234"

	_, err := Run(context.Background(), cfg, newCollaborators(chain, newPeripheryCompiler()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory")
	assert.Empty(t, chain.submitted)
}

func TestSequencerRunsOnce(t *testing.T) {
	chain := newFakeChain(signerAddress)
	compiler := newPeripheryCompiler()

	seq := Sequence{{Name: StepTickLens, Kind: KindContract}}
	s, err := NewSequencer(seq, &fakeSigner{chain: chain, address: signerAddress}, chain, NewLibraryBinder(compiler), NewPreconditionGate(chain, UniswapV3Factory()))
	require.NoError(t, err)
	assert.Equal(t, RunPending, s.State())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, RunCompleted, s.State())
	assert.Equal(t, ErrRunAlreadyStarted, s.Run(context.Background()))
	assert.Len(t, chain.submitted, 1)

	address, err := s.Resolver().Resolve(StepTickLens)
	require.NoError(t, err)
	assert.Equal(t, address, s.Report()[0].Address)
}

func TestNewSequencerRejectsInvalidSequence(t *testing.T) {
	chain := newFakeChain(signerAddress)
	seq := Sequence{
		{Name: "Manager", Kind: KindContract, Args: []ArgSource{Ref("Descriptor")}},
		{Name: "Descriptor", Kind: KindContract},
	}

	_, err := NewSequencer(seq, &fakeSigner{chain: chain, address: signerAddress}, chain, NewLibraryBinder(newPeripheryCompiler()), NewPreconditionGate(chain, UniswapV3Factory()))

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))

	var unknown *UnknownReferenceError
	assert.True(t, errors.As(merr.Errors[0], &unknown))
}

func TestNewSequencerRequiresGate(t *testing.T) {
	chain := newFakeChain(signerAddress)
	signer := &fakeSigner{chain: chain, address: signerAddress}
	binder := NewLibraryBinder(newPeripheryCompiler())

	_, err := NewSequencer(mustPeriphery(t)[:1], signer, chain, binder, nil)
	assert.True(t, errors.Is(err, ErrNoGate))
	assert.Empty(t, chain.submitted)

	// no step needs the gate
	s, err := NewSequencer(Sequence{{Name: StepTickLens, Kind: KindContract}}, signer, chain, binder, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
}

func resolverFor(result *Result) *AddressResolver {
	r := NewAddressResolver()
	for _, b := range result.Bindings {
		_ = r.Record(b.Name, b.Address)
	}

	return r
}

func findCreation(t *testing.T, chain *fakeChain, name string) TxRequest {
	for _, req := range chain.submitted {
		if req.IsCreation() && req.Contract.Name == name {
			return req
		}
	}

	require.FailNow(t, "no creation submitted", name)
	return TxRequest{}
}

func TestManifestPathIsNetworkScoped(t *testing.T) {
	assert.Equal(t, filepath.Join("deployments", "deployment.mainnet.json"), ManifestPath("deployments", "mainnet"))
}
