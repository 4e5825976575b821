package main

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/orchestrator"
)

var ErrUnknownNetwork = errors.New("network is not declared")

type networksTOML struct {
	Networks map[string]networkTOML `toml:"networks"`
}

type networkTOML struct {
	RPC                 string `toml:"rpc"`
	ChainID             uint64 `toml:"chain_id"`
	WETH9               string `toml:"weth9"`
	Factory             string `toml:"factory"`
	NativeCurrencyLabel string `toml:"native_currency_label"`
}

// network is the resolved target of an invocation. Values in the networks file may
// reference environment variables as ${VAR}.
type network struct {
	Name                string
	RPC                 string
	ChainID             uint64
	WETH9               string
	Factory             string
	NativeCurrencyLabel string
}

type networkOverrides struct {
	RPC                 string
	WETH9               string
	Factory             string
	NativeCurrencyLabel string
}

func loadNetwork(path, name string, overrides networkOverrides) (*network, error) {
	net := &network{
		Name: name,
	}

	var raw networksTOML
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			err = errors.Wrapf(err, "failed to parse networks file %s", path)
			return nil, &orchestrator.ConfigurationError{Field: "networks file", Err: err}
		}

		log.WithField("path", path).Debugln("no networks file, using options only")
	} else if declared, ok := raw.Networks[name]; ok {
		net.RPC = os.ExpandEnv(declared.RPC)
		net.ChainID = declared.ChainID
		net.WETH9 = os.ExpandEnv(declared.WETH9)
		net.Factory = os.ExpandEnv(declared.Factory)
		net.NativeCurrencyLabel = declared.NativeCurrencyLabel
	} else if len(overrides.RPC) == 0 {
		err := errors.Wrapf(ErrUnknownNetwork, "%s in %s", name, path)
		return nil, &orchestrator.ConfigurationError{Field: "network", Err: err}
	}

	if len(overrides.RPC) > 0 {
		net.RPC = overrides.RPC
	}
	if len(overrides.WETH9) > 0 {
		net.WETH9 = overrides.WETH9
	}
	if len(overrides.Factory) > 0 {
		net.Factory = overrides.Factory
	}
	if len(overrides.NativeCurrencyLabel) > 0 {
		net.NativeCurrencyLabel = overrides.NativeCurrencyLabel
	}

	if len(net.RPC) == 0 {
		return nil, &orchestrator.ConfigurationError{Field: "rpc", Err: orchestrator.ErrEmpty}
	}

	return net, nil
}

func (n *network) orchestratorConfig(deploymentsDir string) orchestrator.Config {
	return orchestrator.Config{
		Network:             n.Name,
		Factory:             n.Factory,
		WETH9:               n.WETH9,
		NativeCurrencyLabel: n.NativeCurrencyLabel,
		DeploymentsDir:      deploymentsDir,
	}
}

func networkFromOptions() (*network, error) {
	return loadNetwork(*networksFile, *networkName, networkOverrides{
		RPC:                 *evmEndpoint,
		WETH9:               *weth9Address,
		Factory:             *factoryAddress,
		NativeCurrencyLabel: *nativeCurrencyLabel,
	})
}
