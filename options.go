package main

import (
	"time"

	cli "github.com/jawher/mow.cli"
)

const (
	defaultRPCTimeout  = 10 * time.Second
	defaultTxTimeout   = 2 * time.Minute
	defaultCallTimeout = 10 * time.Second
)

var (
	logLevel = app.String(cli.StringOpt{
		Name:   "l log-level",
		Desc:   "Available levels: error, warn, info, debug.",
		EnvVar: "DEPLOYER_LOG_LEVEL",
		Value:  "info",
	})

	networkName = app.String(cli.StringOpt{
		Name:   "n network",
		Desc:   "Name of the target network, must be declared in the networks file.",
		EnvVar: "DEPLOYER_NETWORK",
		Value:  "localhost",
	})

	networksFile = app.String(cli.StringOpt{
		Name:   "networks-file",
		Desc:   "Path to the TOML file declaring networks.",
		EnvVar: "DEPLOYER_NETWORKS_FILE",
		Value:  "networks.toml",
	})

	deploymentsDir = app.String(cli.StringOpt{
		Name:   "deployments-dir",
		Desc:   "Dir where deployment.<network>.json manifests are written.",
		EnvVar: "DEPLOYER_DEPLOYMENTS_DIR",
		Value:  "deployments",
	})

	factoryAddress = app.String(cli.StringOpt{
		Name:   "factory",
		Desc:   "Override the UniswapV3Factory address of the network.",
		EnvVar: "DEPLOYER_FACTORY",
	})

	weth9Address = app.String(cli.StringOpt{
		Name:   "weth9",
		Desc:   "Override the WETH9 address of the network.",
		EnvVar: "DEPLOYER_WETH9",
	})

	nativeCurrencyLabel = app.String(cli.StringOpt{
		Name:   "native-currency-label",
		Desc:   "Override the native currency label used by the position descriptor.",
		EnvVar: "DEPLOYER_NATIVE_CURRENCY_LABEL",
	})

	solcPathSet bool
	solcPath    = app.String(cli.StringOpt{
		Name:      "solc-path",
		Desc:      "Set path solc executable. Found using 'which' otherwise",
		EnvVar:    "DEPLOYER_SOLC_PATH",
		Value:     "",
		SetByUser: &solcPathSet,
	})

	solAllowedPaths = app.Strings(cli.StringsOpt{
		Name:   "solc-allow-paths",
		Desc:   "Additional paths solc is allowed to import from.",
		EnvVar: "DEPLOYER_SOLC_ALLOW_PATHS",
		Value:  []string{},
	})

	contractsRoot = app.String(cli.StringOpt{
		Name:   "R contracts-root",
		Desc:   "Root of the periphery contracts sources, solc runs from there.",
		EnvVar: "DEPLOYER_CONTRACTS_ROOT",
		Value:  ".",
	})

	remappings = app.Strings(cli.StringsOpt{
		Name:   "remappings",
		Desc:   "Import remappings passed to solc, e.g. @uniswap/=node_modules/@uniswap/",
		EnvVar: "DEPLOYER_REMAPPINGS",
		Value:  []string{"@openzeppelin/=node_modules/@openzeppelin/", "@uniswap/=node_modules/@uniswap/", "base64-sol/=node_modules/base64-sol/"},
	})

	optimizerRuns = app.Int(cli.IntOpt{
		Name:   "optimizer-runs",
		Desc:   "Number of optimizer runs.",
		EnvVar: "DEPLOYER_OPTIMIZER_RUNS",
		Value:  1000000,
	})

	evmEndpoint = app.String(cli.StringOpt{
		Name:   "E endpoint",
		Desc:   "Override the JSON-RPC endpoint of the network.",
		EnvVar: "DEPLOYER_RPC_URI",
	})

	gasPrice = app.Int(cli.IntOpt{
		Name:   "G gas-price",
		Desc:   "Override estimated gas price with this option (wei).",
		EnvVar: "DEPLOYER_TX_GAS_PRICE",
		Value:  0,
	})

	gasLimit = app.Int(cli.IntOpt{
		Name:   "L gas-limit",
		Desc:   "Set the maximum gas for every tx, estimated when zero.",
		EnvVar: "DEPLOYER_TX_GAS_LIMIT",
		Value:  0,
	})

	buildCacheDir = app.String(cli.StringOpt{
		Name:   "cache-dir",
		Desc:   "Set cache dir for build artifacts.",
		EnvVar: "DEPLOYER_CACHE_DIR",
		Value:  "build/",
	})

	noCache = app.Bool(cli.BoolOpt{
		Name:   "no-cache",
		Desc:   "Disables build cache completely.",
		EnvVar: "DEPLOYER_DISABLE_CACHE",
		Value:  false,
	})

	rpcTimeout = app.String(cli.StringOpt{
		Name:   "rpc-timeout",
		Desc:   "Timeout of the RPC dial and non-call requests.",
		EnvVar: "DEPLOYER_RPC_TIMEOUT",
		Value:  defaultRPCTimeout.String(),
	})

	txTimeout = app.String(cli.StringOpt{
		Name:   "tx-timeout",
		Desc:   "How long to await a transaction to be mined.",
		EnvVar: "DEPLOYER_TX_TIMEOUT",
		Value:  defaultTxTimeout.String(),
	})

	callTimeout = app.String(cli.StringOpt{
		Name:   "call-timeout",
		Desc:   "Timeout of read-only contract calls.",
		EnvVar: "DEPLOYER_CALL_TIMEOUT",
		Value:  defaultCallTimeout.String(),
	})
)

func duration(s string, defaults time.Duration) time.Duration {
	dur, err := time.ParseDuration(s)
	if err != nil {
		dur = defaults
	}

	return dur
}
