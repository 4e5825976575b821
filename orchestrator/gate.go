package orchestrator

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

// Only the parts of UniswapV3Factory the deployment touches.
const uniswapV3FactoryABIJSON = `[
	{
		"name": "owner",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{ "internalType": "address", "name": "", "type": "address" }]
	},
	{
		"name": "enableFeeAmount",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{ "internalType": "uint24", "name": "fee", "type": "uint24" },
			{ "internalType": "int24", "name": "tickSpacing", "type": "int24" }
		],
		"outputs": []
	},
	{
		"name": "feeAmountTickSpacing",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{ "internalType": "uint24", "name": "", "type": "uint24" }],
		"outputs": [{ "internalType": "int24", "name": "", "type": "int24" }]
	}
]`

// UniswapV3Factory is an ABI-only artifact of the already deployed core factory.
func UniswapV3Factory() *sol.Contract {
	return &sol.Contract{
		Name: "UniswapV3Factory",
		ABI:  []byte(uniswapV3FactoryABIJSON),
	}
}

var ErrUnexpectedOwnerOutput = errors.New("unexpected output of owner()")

// PreconditionGate checks on-chain invariants before governance-mutating calls.
type PreconditionGate struct {
	reader ChainReader
	owned  *sol.Contract
}

// NewPreconditionGate reads owners through the owner() method of the given ABI.
func NewPreconditionGate(reader ChainReader, owned *sol.Contract) *PreconditionGate {
	return &PreconditionGate{
		reader: reader,
		owned:  owned,
	}
}

// RequireGovernanceOwner fails with *PreconditionFailedError unless the current owner
// of contractAddress is exactly expectedCaller.
func (g *PreconditionGate) RequireGovernanceOwner(
	ctx context.Context,
	contractAddress common.Address,
	expectedCaller common.Address,
) error {
	out, err := g.reader.Call(ctx, g.owned, contractAddress, "owner")
	if err != nil {
		err = errors.Wrapf(err, "failed to read owner of %s", contractAddress.Hex())
		return err
	} else if len(out) != 1 {
		return ErrUnexpectedOwnerOutput
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return ErrUnexpectedOwnerOutput
	}

	if !bytes.Equal(owner.Bytes(), expectedCaller.Bytes()) {
		return &PreconditionFailedError{
			Contract: contractAddress,
			Expected: expectedCaller,
			Actual:   owner,
		}
	}

	log.WithFields(log.Fields{
		"contract": contractAddress.Hex(),
		"owner":    owner.Hex(),
	}).Debugln("governance owner of", g.owned.Name, "matches the signer")

	return nil
}
