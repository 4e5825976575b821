package deployer

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

var (
	ErrAwaitTimeout        = errors.New("await timeout")
	ErrNoRevertReason      = errors.New("no revert reason")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrTxNotFound          = errors.New("transaction not found")
	ErrUnlinkedBytecode    = errors.New("contract bytecode has unresolved library references")
	ErrNoSigner            = errors.New("no signer to authorize the transaction with")
)

const receiptPollInterval = time.Second

func getRevertReason(
	ctx context.Context,
	from common.Address,
	contractAddress *common.Address,
	client *Client,
	txData []byte,
	blockNum *big.Int,
) (reason string, err error) {
	callMsg := ethereum.CallMsg{
		From:     from,
		To:       contractAddress,
		GasPrice: big.NewInt(0),
		Data:     txData,
	}

	result, err := client.CallContract(ctx, callMsg, blockNum)
	if err != nil {
		// nodes return the decoded reason inside the call error
		return err.Error(), nil
	}

	if len(result) == 0 {
		return "", ErrNoRevertReason
	}

	reason, err = abi.UnpackRevert(result)
	if err != nil {
		return "", ErrNoRevertReason
	}

	return reason, nil
}

// awaitTx polls for the receipt until it's mined or ctx is done.
func awaitTx(ctx context.Context, client *Client, txHash common.Hash) (*types.Receipt, error) {
	awaitLog := log.WithField("hash", txHash.Hex())
	awaitLog.Debugln("awaiting transaction")

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				awaitLog.Errorln("transaction reverted")
				return receipt, ErrTransactionReverted
			}

			// all good
			return receipt, nil
		} else if err != ethereum.NotFound && ctx.Err() == nil {
			awaitLog.WithError(err).Errorln("failed to await transaction")
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ErrAwaitTimeout
		case <-ticker.C:
		}
	}
}

type SignerType string

const (
	SignerEIP155    SignerType = "eip155"
	SignerHomestead SignerType = "homestead"
)

func getSignerFn(
	signerType SignerType,
	chainId *big.Int,
	from common.Address,
	pk *ecdsa.PrivateKey,
) (bind.SignerFn, error) {
	if pk == nil {
		return nil, ErrNoSigner
	}

	switch signerType {
	case SignerEIP155:
		opts, err := bind.NewKeyedTransactorWithChainID(pk, chainId)
		if err != nil {
			err = errors.Wrap(err, "failed to init NewKeyedTransactorWithChainID")
			return nil, err
		}

		return opts.Signer, nil

	case SignerHomestead:
		signerFn := func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != from {
				err := errors.Errorf("not authorized to sign with %s", address.Hex())
				return nil, err
			}

			signer := &types.HomesteadSigner{}
			txHash := signer.Hash(tx)
			signature, err := crypto.Sign(txHash.Bytes(), pk)
			if err != nil {
				return nil, err
			}

			return tx.WithSignature(signer, signature)
		}

		return signerFn, nil

	default:
		err := errors.Errorf("unsupported signer type: %s", signerType)
		return nil, err
	}
}

type transactOpts struct {
	From   common.Address
	Signer bind.SignerFn
	Value  *big.Int
}

// transact builds, signs and sends a transaction; a nil contract means contract creation.
func (d *deployer) transact(
	ctx context.Context,
	ec *Client,
	opts transactOpts,
	contract *common.Address,
	input []byte,
) (*types.Transaction, common.Hash, error) {
	var err error

	// Ensure a valid value field and resolve the account nonce
	value := opts.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := ec.PendingNonceAt(ctx, opts.From)
	if err != nil {
		log.WithField("from", opts.From.Hex()).WithError(err).Errorln("failed to get most recent nonce")
		return nil, noHash, ErrNoNonce
	}

	// Figure out the gas allowance and gas price values
	gasPrice := d.options.GasPrice
	if gasPrice == nil {
		gasPrice, err = ec.SuggestGasPrice(ctx)
		if err != nil {
			err = errors.Wrap(err, "failed to suggest gas price")
			return nil, noHash, err
		}
	}

	gasLimit := d.options.GasLimit
	if gasLimit == 0 {
		// Gas estimation cannot succeed without code for method invocations
		if contract != nil {
			if code, err := ec.PendingCodeAt(ctx, *contract); err != nil {
				return nil, noHash, err
			} else if len(code) == 0 {
				return nil, noHash, bind.ErrNoCode
			}
		}

		// If the contract surely has code (or code is not needed), estimate the transaction
		msg := ethereum.CallMsg{From: opts.From, To: contract, GasPrice: gasPrice, Value: value, Data: input}
		gasLimit, err = ec.EstimateGas(ctx, msg)
		if err != nil {
			err = errors.Wrap(err, "failed to estimate gas needed")
			return nil, noHash, err
		}
	}

	// Create the transaction, sign it and schedule it for execution
	var rawTx *types.Transaction
	if contract == nil {
		rawTx = types.NewContractCreation(nonce, value, gasLimit, gasPrice, input)
	} else {
		rawTx = types.NewTransaction(nonce, *contract, value, gasLimit, gasPrice, input)
	}

	if opts.Signer == nil {
		return nil, noHash, ErrNoSigner
	}

	signedTx, err := opts.Signer(opts.From, rawTx)
	if err != nil {
		err = errors.Wrap(err, "failed to sign transaction")
		return nil, noHash, err
	}

	log.WithFields(log.Fields{
		"nonce":    nonce,
		"gasPrice": gasPrice.String(),
		"gasLimit": gasLimit,
	}).Debugln("sending transaction", signedTx.Hash().Hex())

	txHash, err := ec.SendTransactionWithRet(ctx, signedTx)
	if err != nil {
		return nil, txHash, err
	}

	return signedTx, txHash, nil
}

func (d *deployer) resolveSigner(
	client *Client,
	signerFn bind.SignerFn,
	from common.Address,
	pk *ecdsa.PrivateKey,
) (bind.SignerFn, error) {
	if signerFn != nil {
		return signerFn, nil
	}

	return getSignerFn(d.options.SignerType, client.PinnedChainID(), from, pk)
}

func parseContractABI(contract *sol.Contract) (abi.ABI, error) {
	parsedABI, err := abi.JSON(strings.NewReader(string(contract.ABI)))
	if err != nil {
		err = errors.Wrapf(err, "failed to parse ABI of %s", contract.Name)
		return abi.ABI{}, err
	}

	return parsedABI, nil
}

func decodeBytecode(contract *sol.Contract) ([]byte, error) {
	if !contract.Linked() {
		return nil, errors.Wrapf(ErrUnlinkedBytecode, "%s links %s", contract.Name, strings.Join(contract.LinkReferences, ", "))
	}

	bin, err := hex.DecodeString(strings.TrimPrefix(contract.Bin, "0x"))
	if err != nil {
		err = errors.Wrapf(err, "failed to hex-decode bytecode of %s", contract.Name)
		return nil, err
	} else if len(bin) == 0 {
		err = errors.Errorf("contract %s has no bytecode", contract.Name)
		return nil, err
	}

	return bin, nil
}

var noHash = common.Hash{}
