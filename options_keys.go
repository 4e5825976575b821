package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/accounts/usbwallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	cli "github.com/jawher/mow.cli"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh/terminal"
)

var (
	keystoreDir = app.String(cli.StringOpt{
		Name:   "keystore-dir",
		Desc:   "Specify Ethereum keystore dir (Geth or Clef) prefix.",
		EnvVar: "DEPLOYER_KEYSTORE_DIR",
	})

	from = app.String(cli.StringOpt{
		Name:   "F from",
		Desc:   "Specify the from address. If specified, must exist in keystore, ledger or match the privkey.",
		EnvVar: "DEPLOYER_FROM",
	})

	fromPassphrase = app.String(cli.StringOpt{
		Name:   "from-passphrase",
		Desc:   "Passphrase to unlock the private key from armor, if empty then stdin is used.",
		EnvVar: "DEPLOYER_FROM_PASSPHRASE",
	})

	fromPrivKey = app.String(cli.StringOpt{
		Name:   "P from-pk",
		Desc:   "Provide a raw Ethereum private key of the deployer in hex.",
		EnvVar: "DEPLOYER_FROM_PK",
	})

	useLedger = app.Bool(cli.BoolOpt{
		Name:   "ledger",
		Desc:   "Use the Ethereum app on hardware ledger to sign transactions.",
		EnvVar: "DEPLOYER_USE_LEDGER",
		Value:  false,
	})
)

var (
	ErrNoFromAddress   = errors.New("from address is not specified")
	ErrInvalidFrom     = errors.New("failed to parse Ethereum from address")
	ErrFromMismatch    = errors.New("Ethereum from address does not match address from ECDSA Private Key")
	ErrNoKeyDetails    = errors.New("insufficient ethereum key details provided")
	ErrNoKeystoreDir   = errors.New("failed to locate keystore dir")
	ErrAccountNotFound = errors.New("account not found")
)

func parseFromAddress(from string) (common.Address, error) {
	if len(from) == 0 {
		return common.Address{}, ErrNoFromAddress
	} else if !common.IsHexAddress(from) {
		return common.Address{}, ErrInvalidFrom
	}

	return common.HexToAddress(from), nil
}

// initEthereumAccountsManager picks the signer: Ledger, then a raw private key, then
// a keystore account.
func initEthereumAccountsManager(
	chainID uint64,
	keystoreDir *string,
	from *string,
	fromPassphrase *string,
	fromPrivKey *string,
	useLedger *bool,
) (
	fromAddress common.Address,
	signerFn bind.SignerFn,
	err error,
) {
	switch {
	case *useLedger:
		fromAddress, err = parseFromAddress(*from)
		if err != nil {
			err = errors.Wrap(err, "cannot use Ledger")
			return common.Address{}, nil, err
		}

		ledgerBackend, err := usbwallet.NewLedgerHub()
		if err != nil {
			err = errors.Wrap(err, "failed to connect with Ethereum app on Ledger device")
			return common.Address{}, nil, err
		}

		signerFn = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
			acc := accounts.Account{
				Address: from,
			}

			for _, w := range ledgerBackend.Wallets() {
				if err := w.Open(""); err != nil {
					err = errors.Wrap(err, "failed to connect to wallet on Ledger device")
					return nil, err
				}

				if !w.Contains(acc) {
					if err := w.Close(); err != nil {
						err = errors.Wrap(err, "failed to disconnect the wallet on Ledger device")
						return nil, err
					}

					continue
				}

				tx, err := w.SignTx(acc, tx, new(big.Int).SetUint64(chainID))
				_ = w.Close()
				return tx, err
			}

			return nil, errors.Wrapf(ErrAccountNotFound, "%s on Ledger", from.Hex())
		}

		return fromAddress, signerFn, nil

	case len(*fromPrivKey) > 0:
		pkHex := strings.TrimPrefix(*fromPrivKey, "0x")
		ethPk, err := crypto.HexToECDSA(pkHex)
		if err != nil {
			err = errors.Wrap(err, "failed to hex-decode Ethereum ECDSA Private Key")
			return common.Address{}, nil, err
		}

		ethAddressFromPk := crypto.PubkeyToAddress(ethPk.PublicKey)

		if len(*from) > 0 {
			addr, err := parseFromAddress(*from)
			if err != nil {
				return common.Address{}, nil, err
			} else if addr != ethAddressFromPk {
				return common.Address{}, nil, ErrFromMismatch
			}
		}

		txOpts, err := bind.NewKeyedTransactorWithChainID(ethPk, new(big.Int).SetUint64(chainID))
		if err != nil {
			err = errors.Wrap(err, "failed to init NewKeyedTransactorWithChainID")
			return common.Address{}, nil, err
		}

		return txOpts.From, txOpts.Signer, nil

	case len(*keystoreDir) > 0:
		fromAddress, err = parseFromAddress(*from)
		if err != nil {
			err = errors.Wrap(err, "cannot use Ethereum keystore")
			return common.Address{}, nil, err
		}

		if info, err := os.Stat(*keystoreDir); err != nil || !info.IsDir() {
			return common.Address{}, nil, ErrNoKeystoreDir
		}

		ks := keystore.NewKeyStore(*keystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
		if !ks.HasAddress(fromAddress) {
			err = errors.Wrapf(ErrAccountNotFound, "%s in %s", fromAddress.Hex(), *keystoreDir)
			return common.Address{}, nil, err
		}

		var pass string
		if len(*fromPassphrase) > 0 {
			pass = *fromPassphrase
		} else {
			pass, err = ethPassFromStdin()
			if err != nil {
				return common.Address{}, nil, err
			}
		}

		acc := accounts.Account{Address: fromAddress}
		if err := ks.Unlock(acc, pass); err != nil {
			err = errors.Wrapf(err, "failed to unlock key for %s", fromAddress.Hex())
			return common.Address{}, nil, err
		}

		txOpts, err := bind.NewKeyStoreTransactorWithChainID(ks, acc, new(big.Int).SetUint64(chainID))
		if err != nil {
			err = errors.Wrap(err, "failed to init NewKeyStoreTransactorWithChainID")
			return common.Address{}, nil, err
		}

		return fromAddress, txOpts.Signer, nil

	default:
		return common.Address{}, nil, ErrNoKeyDetails
	}
}

func ethPassFromStdin() (string, error) {
	fmt.Print("Passphrase for Ethereum account: ")
	bytePassword, err := terminal.ReadPassword(int(syscall.Stdin))
	if err != nil {
		err := errors.Wrap(err, "failed to read password from stdin")
		return "", err
	}

	password := string(bytePassword)
	return strings.TrimSpace(password), nil
}
