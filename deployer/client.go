package deployer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"
)

var (
	ErrClientNotAvailable = errors.New("EVM RPC client is not available due to connection issue")
	ErrChainIDMismatch    = errors.New("chain ID of the endpoint differs from the network's")
)

// Client is an RPC connection pinned to the chain it reported when dialed. Every
// transaction it sends is signed for that chain.
type Client struct {
	*ethclient.Client

	rc      *rpc.Client
	chainID *big.Int
}

// connectClient queries the chain ID behind rc, failing when expected is set and differs.
func connectClient(ctx context.Context, rc *rpc.Client, expected uint64) (*Client, error) {
	ec := ethclient.NewClient(rc)

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		err = errors.Wrap(ErrNoChainID, err.Error())
		return nil, err
	} else if expected > 0 && (!chainID.IsUint64() || chainID.Uint64() != expected) {
		err = errors.Wrapf(ErrChainIDMismatch, "endpoint reports %s, expected %d", chainID.String(), expected)
		return nil, err
	}

	c := &Client{
		Client:  ec,
		rc:      rc,
		chainID: chainID,
	}

	return c, nil
}

// PinnedChainID is the chain ID reported by the endpoint at connection time.
func (ec *Client) PinnedChainID() *big.Int {
	return new(big.Int).Set(ec.chainID)
}

// SendTransactionWithRet returns the hash reported by the node, which may differ from
// tx.Hash() on chains with non-standard tx hashing.
func (ec *Client) SendTransactionWithRet(ctx context.Context, tx *types.Transaction) (txHash common.Hash, err error) {
	data, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return common.Hash{}, err
	}

	if err := ec.rc.CallContext(ctx, &txHash, "eth_sendRawTransaction", hexutil.Encode(data)); err != nil {
		return tx.Hash(), err
	}

	return txHash, nil
}

// Backend dials the endpoint once. A failed dial or a chain ID mismatch is remembered
// and returned on every later call.
func (d *deployer) Backend() (*Client, error) {
	d.initClientOnce.Do(func() {
		dialCtx, cancelFn := context.WithTimeout(context.Background(), d.options.RPCTimeout)
		defer cancelFn()

		clientLog := log.WithField("endpoint", d.options.EVMRPCEndpoint)

		rc, err := rpc.DialContext(dialCtx, d.options.EVMRPCEndpoint)
		if err != nil {
			clientLog.WithError(err).Errorln("failed to dial EVM RPC endpoint")
			d.clientErr = ErrClientNotAvailable
			return
		}

		client, err := connectClient(dialCtx, rc, d.options.ChainID)
		if err != nil {
			clientLog.WithError(err).Errorln("failed to verify EVM RPC endpoint")
			rc.Close()
			d.clientErr = err
			return
		}

		clientLog.WithField("chainID", client.chainID.String()).Debugln("connected to EVM RPC endpoint")
		d.client = client
	})

	if d.client == nil {
		return nil, d.clientErr
	}

	return d.client, nil
}
