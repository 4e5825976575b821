package main

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/deployer"
	"github.com/InjectiveLabs/v3-periphery-deploy/orchestrator"
	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

type artifactCompiler struct {
	d deployer.Deployer
}

func (c *artifactCompiler) Compile(ctx context.Context, libs sol.Libraries) (map[string]*sol.Contract, error) {
	return c.d.Build(ctx, libs)
}

type chainReader struct {
	d    deployer.Deployer
	from common.Address
}

func (r *chainReader) Call(
	ctx context.Context,
	contract *sol.Contract,
	address common.Address,
	method string,
	args ...interface{},
) ([]interface{}, error) {
	return r.d.Call(ctx, deployer.ContractCallOpts{
		From:     r.from,
		Contract: contract,
		Address:  address,
	}, method, args...)
}

type txSigner struct {
	d        deployer.Deployer
	from     common.Address
	signerFn bind.SignerFn
}

func (s *txSigner) Address() common.Address {
	return s.from
}

func (s *txSigner) Submit(ctx context.Context, req orchestrator.TxRequest) (orchestrator.PendingTx, error) {
	if req.IsCreation() {
		txHash, address, err := s.d.Deploy(ctx, deployer.ContractDeployOpts{
			From:     s.from,
			SignerFn: s.signerFn,
			Contract: req.Contract,
		}, req.Args...)
		if err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{
			"contract": req.Contract.Name,
			"txHash":   txHash.Hex(),
		}).Debugln("expecting contract at", address.Hex())

		return &pendingTx{d: s.d, from: s.from, hash: txHash}, nil
	}

	txHash, err := s.d.Tx(ctx, deployer.ContractTxOpts{
		From:     s.from,
		SignerFn: s.signerFn,
		Contract: req.Contract,
		Address:  *req.To,
	}, req.Method, req.Args...)
	if err != nil {
		return nil, err
	}

	return &pendingTx{d: s.d, from: s.from, hash: txHash}, nil
}

type pendingTx struct {
	d    deployer.Deployer
	from common.Address
	hash common.Hash
}

func (p *pendingTx) Hash() common.Hash {
	return p.hash
}

func (p *pendingTx) Await(ctx context.Context) (*types.Receipt, error) {
	return p.d.Await(ctx, p.from, p.hash)
}
