package orchestrator

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"
)

const DefaultNativeCurrencyLabel = "ETH"

var (
	ErrEmpty       = errors.New("value is empty")
	ErrNotAddress  = errors.New("not a hex address")
	ErrZeroAddress = errors.New("zero address")
)

// Config is everything a run needs besides its collaborators. Addresses are kept in
// their textual form until validated.
type Config struct {
	Network             string
	Factory             string
	WETH9               string
	NativeCurrencyLabel string
	DeploymentsDir      string
}

// Validate reports every missing or malformed setting, each one as *ConfigurationError.
func (c Config) Validate() error {
	var result error

	if len(c.Network) == 0 {
		result = multierror.Append(result, &ConfigurationError{Field: "network", Err: ErrEmpty})
	}

	if err := validateAddress(c.Factory); err != nil {
		result = multierror.Append(result, &ConfigurationError{Field: "factory", Err: err})
	}

	if err := validateAddress(c.WETH9); err != nil {
		result = multierror.Append(result, &ConfigurationError{Field: "weth9", Err: err})
	}

	if _, err := AsciiStringToBytes32(c.nativeCurrencyLabel()); err != nil {
		result = multierror.Append(result, &ConfigurationError{Field: "native currency label", Err: err})
	}

	if len(c.DeploymentsDir) == 0 {
		result = multierror.Append(result, &ConfigurationError{Field: "deployments dir", Err: ErrEmpty})
	}

	return result
}

func (c Config) FactoryAddress() common.Address {
	return common.HexToAddress(c.Factory)
}

func (c Config) WETH9Address() common.Address {
	return common.HexToAddress(c.WETH9)
}

func (c Config) nativeCurrencyLabel() string {
	if len(c.NativeCurrencyLabel) == 0 {
		return DefaultNativeCurrencyLabel
	}

	return c.NativeCurrencyLabel
}

func validateAddress(v string) error {
	if len(v) == 0 {
		return ErrEmpty
	} else if !common.IsHexAddress(v) {
		return errors.Wrap(ErrNotAddress, v)
	} else if common.HexToAddress(v) == (common.Address{}) {
		return ErrZeroAddress
	}

	return nil
}

type Collaborators struct {
	Compiler ArtifactCompiler
	Signer   Signer
	Reader   ChainReader
}

type Result struct {
	State        RunState
	Steps        []StepReport
	Bindings     []AddressBinding
	ManifestPath string
}

// Run deploys the whole periphery sequence against cfg.Network and writes its manifest.
// The manifest is only written once every step succeeded; a failed run leaves any
// previous manifest untouched.
func Run(ctx context.Context, cfg Config, c Collaborators) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seq, err := PeripherySequence(cfg)
	if err != nil {
		return nil, err
	}

	sequencer, err := NewSequencer(
		seq,
		c.Signer,
		c.Reader,
		NewLibraryBinder(c.Compiler),
		NewPreconditionGate(c.Reader, UniswapV3Factory()),
	)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"network": cfg.Network,
		"factory": cfg.FactoryAddress().Hex(),
		"signer":  c.Signer.Address().Hex(),
		"steps":   len(seq),
	}).Infoln("starting periphery deployment")

	runErr := sequencer.Run(ctx)

	result := &Result{
		State:    sequencer.State(),
		Steps:    sequencer.Report(),
		Bindings: sequencer.Resolver().Bindings(),
	}

	if runErr != nil {
		return result, runErr
	}

	writer := NewManifestWriter(cfg.DeploymentsDir, PeripheryManifestKeys())
	path, err := writer.Write(cfg.Network, sequencer.Resolver())
	if err != nil {
		return result, err
	}

	result.ManifestPath = path
	return result, nil
}
