package deployer

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

type ContractTxOpts struct {
	From     common.Address
	FromPk   *ecdsa.PrivateKey
	SignerFn bind.SignerFn
	Contract *sol.Contract
	Address  common.Address
	Value    *big.Int
}

func (d *deployer) Tx(
	ctx context.Context,
	txOpts ContractTxOpts,
	methodName string,
	methodArgs ...interface{},
) (txHash common.Hash, err error) {
	if txOpts.Contract == nil {
		return noHash, ErrNoContract
	}

	contractABI, err := parseContractABI(txOpts.Contract)
	if err != nil {
		return noHash, err
	}

	if _, ok := contractABI.Methods[methodName]; !ok {
		err := errors.Errorf("method not found: %s", methodName)
		log.WithField("contract", txOpts.Contract.Name).WithError(err).Errorln("failed to prepare transaction")
		return noHash, err
	}

	calldata, err := contractABI.Pack(methodName, methodArgs...)
	if err != nil {
		err = errors.Wrap(err, "failed to ABI-encode method args")
		return noHash, err
	}

	client, err := d.Backend()
	if err != nil {
		return noHash, err
	}

	signerFn, err := d.resolveSigner(client, txOpts.SignerFn, txOpts.From, txOpts.FromPk)
	if err != nil {
		log.WithError(err).Errorln("failed to get signer function")
		return noHash, err
	}

	txCtx, cancelFn := context.WithTimeout(ctx, d.options.RPCTimeout)
	defer cancelFn()

	contractAddress := txOpts.Address
	_, txHash, err = d.transact(txCtx, client, transactOpts{
		From:   txOpts.From,
		Signer: signerFn,
		Value:  txOpts.Value,
	}, &contractAddress, calldata)
	if err != nil {
		log.WithError(err).WithField("txHash", txHash.Hex()).Errorln("failed to send transaction")
		return txHash, err
	}

	log.WithFields(log.Fields{
		"contract": contractAddress.Hex(),
		"txHash":   txHash.Hex(),
	}).Debugln("submitted transaction", methodName)

	return txHash, nil
}

func (d *deployer) Await(
	ctx context.Context,
	from common.Address,
	txHash common.Hash,
) (*types.Receipt, error) {
	client, err := d.Backend()
	if err != nil {
		return nil, err
	}

	awaitCtx, cancelFn := context.WithTimeout(ctx, d.options.TxTimeout)
	defer cancelFn()

	receipt, err := awaitTx(awaitCtx, client, txHash)
	if err != ErrTransactionReverted {
		return receipt, err
	}

	callCtx, cancelFn := context.WithTimeout(ctx, d.options.CallTimeout)
	defer cancelFn()

	tx, _, txErr := client.TransactionByHash(callCtx, txHash)
	if txErr != nil {
		log.WithError(txErr).Warningln("failed to get reverted transaction")
		return receipt, err
	}

	reason, reasonErr := getRevertReason(callCtx, from, tx.To(), client, tx.Data(), receipt.BlockNumber)
	if reasonErr != nil {
		log.WithError(reasonErr).Debugln("failed to get revert reason")
		return receipt, err
	}

	return receipt, errors.Wrap(ErrTransactionReverted, reason)
}
