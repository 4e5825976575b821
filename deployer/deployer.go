package deployer

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

type Option func(o *options) error

func New(opts ...Option) (Deployer, error) {
	d := &deployer{
		options: defaultOptions(),
	}

	for _, o := range opts {
		if err := o(d.options); err != nil {
			err = errors.Wrap(err, "error in deployer option")
			return nil, err
		}
	}

	return d, nil
}

type Deployer interface {
	// Build compiles every configured source, linking against libs.
	Build(
		ctx context.Context,
		libs sol.Libraries,
	) (map[string]*sol.Contract, error)

	// Deploy signs and submits a contract creation transaction without awaiting it.
	Deploy(
		ctx context.Context,
		deployOpts ContractDeployOpts,
		constructorArgs ...interface{},
	) (txHash common.Hash, address common.Address, err error)

	// Tx signs and submits a method call transaction without awaiting it.
	Tx(
		ctx context.Context,
		txOpts ContractTxOpts,
		methodName string,
		methodArgs ...interface{},
	) (txHash common.Hash, err error)

	// Await blocks until the transaction is mined, failing if it reverted.
	Await(
		ctx context.Context,
		from common.Address,
		txHash common.Hash,
	) (*types.Receipt, error)

	Call(
		ctx context.Context,
		callOpts ContractCallOpts,
		methodName string,
		methodArgs ...interface{},
	) (output []interface{}, err error)

	Backend() (*Client, error)
}

type deployer struct {
	options *options

	initClientOnce sync.Once
	client         *Client
	clientErr      error

	initCompilerOnce sync.Once
	compiler         sol.Compiler
}

type options struct {
	RPCTimeout  time.Duration
	TxTimeout   time.Duration
	CallTimeout time.Duration

	EVMRPCEndpoint string
	ChainID        uint64
	SignerType     SignerType
	GasPrice       *big.Int
	GasLimit       uint64

	NoCache          bool
	BuildCacheDir    string
	SolcPath         string
	SolcPathSet      bool
	SolcAllowedPaths []string
	ContractsRoot    string
	Sources          []string
	Remappings       []string
	OptimizerRuns    int
	EVMVersion       sol.EVMVersion
}

func defaultOptions() *options {
	return &options{
		RPCTimeout:  10 * time.Second,
		TxTimeout:   2 * time.Minute,
		CallTimeout: 10 * time.Second,

		EVMRPCEndpoint: "http://localhost:8545",
		SignerType:     SignerEIP155,
		GasLimit:       0,
		NoCache:        false,
		BuildCacheDir:  "build/",
		ContractsRoot:  ".",
		OptimizerRuns:  200,
		EVMVersion:     sol.EVMVersionIstanbul,
	}
}

func OptionRPCTimeout(dur time.Duration) Option {
	return func(o *options) error {
		if dur > time.Millisecond {
			o.RPCTimeout = dur
		}

		return nil
	}
}

func OptionTxTimeout(dur time.Duration) Option {
	return func(o *options) error {
		if dur > time.Millisecond {
			o.TxTimeout = dur
		}

		return nil
	}
}

func OptionCallTimeout(dur time.Duration) Option {
	return func(o *options) error {
		if dur > time.Millisecond {
			o.CallTimeout = dur
		}

		return nil
	}
}

func OptionEVMRPCEndpoint(endpoint string) Option {
	return func(o *options) error {
		if len(endpoint) == 0 {
			return errors.New("empty EVM RPC endpoint provided")
		}

		o.EVMRPCEndpoint = endpoint
		return nil
	}
}

// OptionChainID pins the chain the endpoint must report, zero accepts any chain.
func OptionChainID(chainID uint64) Option {
	return func(o *options) error {
		o.ChainID = chainID
		return nil
	}
}

func OptionSignerType(signerType SignerType) Option {
	return func(o *options) error {
		if len(signerType) == 0 {
			return errors.New("signer type not specified")
		}

		o.SignerType = signerType
		return nil
	}
}

// OptionGasPrice sets a fixed gas price, a nil or zero price means it's suggested by the node.
func OptionGasPrice(price *big.Int) Option {
	return func(o *options) error {
		if price != nil && price.Sign() > 0 {
			o.GasPrice = price
		}

		return nil
	}
}

// OptionGasLimit sets a fixed gas limit, zero means it's estimated per transaction.
func OptionGasLimit(gasLimit uint64) Option {
	return func(o *options) error {
		if gasLimit != 0 && gasLimit < 21000 {
			return errors.New("gas limit too low")
		}

		o.GasLimit = gasLimit
		return nil
	}
}

func OptionNoCache(noCache bool) Option {
	return func(o *options) error {
		o.NoCache = noCache
		return nil
	}
}

func OptionBuildCacheDir(dir string) Option {
	return func(o *options) error {
		if len(dir) == 0 {
			return errors.New("empty build cache dir provided")
		}

		o.BuildCacheDir = dir
		return nil
	}
}

func OptionSolcPath(dir string) Option {
	return func(o *options) error {
		if len(dir) == 0 {
			o.SolcPathSet = false
		} else {
			o.SolcPathSet = true
		}

		o.SolcPath = dir
		return nil
	}
}

func OptionSolcAllowedPaths(paths []string) Option {
	return func(o *options) error {
		o.SolcAllowedPaths = paths
		return nil
	}
}

// OptionContractsRoot sets the dir solc runs from, sources are relative to it.
func OptionContractsRoot(dir string) Option {
	return func(o *options) error {
		if len(dir) == 0 {
			return errors.New("empty contracts root provided")
		}

		o.ContractsRoot = dir
		return nil
	}
}

func OptionSources(sources []string) Option {
	return func(o *options) error {
		if len(sources) == 0 {
			return errors.New("no sources provided")
		}

		o.Sources = sources
		return nil
	}
}

func OptionRemappings(remappings []string) Option {
	return func(o *options) error {
		o.Remappings = remappings
		return nil
	}
}

func OptionOptimizerRuns(runs int) Option {
	return func(o *options) error {
		if runs < 0 {
			return errors.New("optimizer runs must not be negative")
		}

		o.OptimizerRuns = runs
		return nil
	}
}

func OptionEVMVersion(version sol.EVMVersion) Option {
	return func(o *options) error {
		o.EVMVersion = version
		return nil
	}
}
