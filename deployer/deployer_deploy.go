package deployer

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

var (
	ErrEndpointUnreachable = errors.New("unable to dial EVM RPC endpoint")
	ErrNoChainID           = errors.New("failed to get valid Chain ID")
	ErrNoNonce             = errors.New("failed to get latest from nonce")
	ErrNoContract          = errors.New("no compiled contract provided")
)

type ContractDeployOpts struct {
	From     common.Address
	FromPk   *ecdsa.PrivateKey
	SignerFn bind.SignerFn
	Contract *sol.Contract
	Value    *big.Int
}

func (d *deployer) Deploy(
	ctx context.Context,
	deployOpts ContractDeployOpts,
	constructorArgs ...interface{},
) (txHash common.Hash, address common.Address, err error) {
	contract := deployOpts.Contract
	if contract == nil {
		return noHash, common.Address{}, ErrNoContract
	}

	bin, err := decodeBytecode(contract)
	if err != nil {
		return noHash, common.Address{}, err
	}

	contractABI, err := parseContractABI(contract)
	if err != nil {
		return noHash, common.Address{}, err
	}

	abiPackedArgs, err := contractABI.Pack("", constructorArgs...)
	if err != nil {
		err = errors.Wrap(err, "failed to ABI-encode constructor values")
		return noHash, common.Address{}, err
	}

	client, err := d.Backend()
	if err != nil {
		return noHash, common.Address{}, err
	}

	signerFn, err := d.resolveSigner(client, deployOpts.SignerFn, deployOpts.From, deployOpts.FromPk)
	if err != nil {
		log.WithError(err).Errorln("failed to get signer function")
		return noHash, common.Address{}, err
	}

	txCtx, cancelFn := context.WithTimeout(ctx, d.options.RPCTimeout)
	defer cancelFn()

	input := append(append([]byte{}, bin...), abiPackedArgs...)
	tx, txHash, err := d.transact(txCtx, client, transactOpts{
		From:   deployOpts.From,
		Signer: signerFn,
		Value:  deployOpts.Value,
	}, nil, input)
	if err != nil {
		log.WithError(err).WithField("txHash", txHash.Hex()).Errorln("failed to deploy contract", contract.Name)
		return txHash, common.Address{}, err
	}

	address = crypto.CreateAddress(deployOpts.From, tx.Nonce())
	contract.Address = address

	log.WithFields(log.Fields{
		"txHash":  txHash.Hex(),
		"address": address.Hex(),
	}).Debugln("submitted contract deployment", contract.Name)

	return txHash, address, nil
}
