package orchestrator

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

// ArtifactCompiler compiles every artifact the sequence needs against the given
// library bindings.
type ArtifactCompiler interface {
	Compile(ctx context.Context, libs sol.Libraries) (map[string]*sol.Contract, error)
}

// TxRequest is either a contract creation (To == nil) or a method call on To.
type TxRequest struct {
	Contract *sol.Contract
	To       *common.Address
	Method   string
	Args     []interface{}
}

func (r TxRequest) IsCreation() bool {
	return r.To == nil
}

type PendingTx interface {
	Hash() common.Hash
	// Await blocks until the transaction is mined. A reverted transaction is an error.
	Await(ctx context.Context) (*types.Receipt, error)
}

type Signer interface {
	Address() common.Address
	Submit(ctx context.Context, req TxRequest) (PendingTx, error)
}

// ChainReader performs read-only contract calls.
type ChainReader interface {
	Call(
		ctx context.Context,
		contract *sol.Contract,
		address common.Address,
		method string,
		args ...interface{},
	) ([]interface{}, error)
}
