package orchestrator

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryBinderRebind(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	compiler := newPeripheryCompiler()
	binder := NewLibraryBinder(compiler)

	_, err := binder.Artifact(ctx, StepNonfungibleTokenPositionDescriptor)
	var recompile *RecompileError
	require.True(t, errors.As(err, &recompile))
	assert.True(errors.Is(err, ErrUnlinkedArtifact))
	assert.Len(compiler.calls, 1)

	// reused until something is rebound
	_, err = binder.Artifact(ctx, StepTickLens)
	require.NoError(t, err)
	assert.Len(compiler.calls, 1)

	other := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	require.NoError(t, binder.BindLibrary(ctx, "contracts/libraries/Other.sol", "Other", other))

	first := common.HexToAddress("0x0000000000000000000000000000000000000001")
	require.NoError(t, binder.BindLibrary(ctx, nftDescriptorSource, "NFTDescriptor", first))
	assert.Len(compiler.calls, 3)

	descriptor, err := binder.Artifact(ctx, StepNonfungibleTokenPositionDescriptor)
	require.NoError(t, err)
	assert.True(descriptor.Linked())

	second := common.HexToAddress("0x0000000000000000000000000000000000000002")
	require.NoError(t, binder.BindLibrary(ctx, nftDescriptorSource, "NFTDescriptor", second))

	libs := binder.Libraries()
	address, ok := libs.Address(nftDescriptorSource, "NFTDescriptor")
	require.True(t, ok)
	assert.Equal(second, address)

	address, ok = libs.Address("contracts/libraries/Other.sol", "Other")
	require.True(t, ok)
	assert.Equal(other, address)

	// the compiler always sees exactly the current configuration
	last := compiler.calls[len(compiler.calls)-1]
	address, _ = last.Address(nftDescriptorSource, "NFTDescriptor")
	assert.Equal(second, address)
}

func TestLibraryBinderCompileFailure(t *testing.T) {
	compiler := newPeripheryCompiler()
	compiler.err = errors.New("solc: exit status 1")

	binder := NewLibraryBinder(compiler)
	err := binder.BindLibrary(context.Background(), nftDescriptorSource, "NFTDescriptor", common.HexToAddress("0x01"))

	var recompile *RecompileError
	require.True(t, errors.As(err, &recompile))
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestLibraryBinderUnknownArtifact(t *testing.T) {
	binder := NewLibraryBinder(newPeripheryCompiler())

	_, err := binder.Artifact(context.Background(), "Staker")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}
