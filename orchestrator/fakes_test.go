package orchestrator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

var (
	signerAddress   = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	strangerAddress = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	factoryAddress  = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	weth9Address    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

// fakeCompiler produces one artifact per name. Artifacts listed in linked stay unlinked
// until their library is bound.
type fakeCompiler struct {
	names  []string
	linked map[string]LibraryLink
	err    error

	calls []sol.Libraries
}

func newPeripheryCompiler() *fakeCompiler {
	return &fakeCompiler{
		names: []string{
			StepMulticall,
			StepTickLens,
			StepNFTDescriptor,
			StepNonfungibleTokenPositionDescriptor,
			StepNonfungiblePositionManager,
			StepV3Migrator,
			StepQuoterV2,
			StepSwapRouter,
		},
		linked: map[string]LibraryLink{
			StepNonfungibleTokenPositionDescriptor: {
				SourcePath: nftDescriptorSource,
				Library:    "NFTDescriptor",
			},
		},
	}
}

func (c *fakeCompiler) Compile(_ context.Context, libs sol.Libraries) (map[string]*sol.Contract, error) {
	c.calls = append(c.calls, libs)
	if c.err != nil {
		return nil, c.err
	}

	artifacts := make(map[string]*sol.Contract, len(c.names))
	for _, name := range c.names {
		contract := &sol.Contract{
			Name: name,
			ABI:  []byte(`[]`),
			Bin:  "0x6080",
		}

		if link, ok := c.linked[name]; ok {
			if _, bound := libs.Address(link.SourcePath, link.Library); !bound {
				contract.LinkReferences = []string{link.SourcePath + ":" + link.Library}
			}
		}

		artifacts[name] = contract
	}

	return artifacts, nil
}

// fakeChain is a minimal simulated network holding a single governed factory.
type fakeChain struct {
	owner       common.Address
	tickSpacing map[int64]int64

	nonce     uint64
	submitted []TxRequest

	rejectSubmit map[string]error
	revert       map[string]bool
	readErr      error
}

func newFakeChain(owner common.Address) *fakeChain {
	return &fakeChain{
		owner:        owner,
		tickSpacing:  map[int64]int64{500: 10, 3000: 60, 10000: 200},
		rejectSubmit: make(map[string]error),
		revert:       make(map[string]bool),
	}
}

func (c *fakeChain) Call(
	_ context.Context,
	contract *sol.Contract,
	address common.Address,
	method string,
	args ...interface{},
) ([]interface{}, error) {
	if c.readErr != nil {
		return nil, c.readErr
	} else if address != factoryAddress {
		return nil, errors.Errorf("no contract at %s", address.Hex())
	}

	switch method {
	case "owner":
		return []interface{}{c.owner}, nil
	case "feeAmountTickSpacing":
		fee := args[0].(*big.Int).Int64()
		return []interface{}{big.NewInt(c.tickSpacing[fee])}, nil
	default:
		return nil, errors.Errorf("%s has no method %s", contract.Name, method)
	}
}

type fakeSigner struct {
	chain   *fakeChain
	address common.Address
}

func (s *fakeSigner) Address() common.Address {
	return s.address
}

func (s *fakeSigner) Submit(_ context.Context, req TxRequest) (PendingTx, error) {
	label := req.Contract.Name
	if !req.IsCreation() {
		label = req.Method
	}

	if err := s.chain.rejectSubmit[label]; err != nil {
		return nil, err
	}

	s.chain.submitted = append(s.chain.submitted, req)
	nonce := s.chain.nonce
	s.chain.nonce++

	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%d", s.address.Hex(), nonce)))
	receipt := &types.Receipt{
		TxHash: hash,
		Status: types.ReceiptStatusSuccessful,
	}

	if s.chain.revert[label] {
		receipt.Status = types.ReceiptStatusFailed
		return &fakePending{hash: hash, receipt: receipt, err: errors.New("execution reverted")}, nil
	}

	if req.IsCreation() {
		receipt.ContractAddress = crypto.CreateAddress(s.address, nonce)
	} else if req.Method == "enableFeeAmount" {
		fee := req.Args[0].(*big.Int).Int64()
		s.chain.tickSpacing[fee] = req.Args[1].(*big.Int).Int64()
	}

	return &fakePending{hash: hash, receipt: receipt}, nil
}

type fakePending struct {
	hash    common.Hash
	receipt *types.Receipt
	err     error
}

func (p *fakePending) Hash() common.Hash {
	return p.hash
}

func (p *fakePending) Await(_ context.Context) (*types.Receipt, error) {
	if p.err != nil {
		return nil, p.err
	}

	return p.receipt, nil
}

func validConfig(dir string) Config {
	return Config{
		Network:        "sepolia",
		Factory:        factoryAddress.Hex(),
		WETH9:          weth9Address.Hex(),
		DeploymentsDir: dir,
	}
}
