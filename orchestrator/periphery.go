package orchestrator

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

const (
	StepEnableFeeTier                      = "EnableFeeAmount100"
	StepMulticall                          = "UniswapInterfaceMulticall"
	StepTickLens                           = "TickLens"
	StepNFTDescriptor                      = "NFTDescriptor"
	StepNonfungibleTokenPositionDescriptor = "NonfungibleTokenPositionDescriptor"
	StepNonfungiblePositionManager         = "NonfungiblePositionManager"
	StepV3Migrator                         = "V3Migrator"
	StepQuoterV2                           = "QuoterV2"
	StepSwapRouter                         = "SwapRouter"
)

// One basis point fee tier, enabled on the existing factory before anything is deployed.
const (
	OneBPFee         int64 = 100
	OneBPTickSpacing int64 = 1
)

const (
	multicallSource          = "contracts/lens/UniswapInterfaceMulticall.sol"
	tickLensSource           = "contracts/lens/TickLens.sol"
	nftDescriptorSource      = "contracts/libraries/NFTDescriptor.sol"
	positionDescriptorSource = "contracts/NonfungibleTokenPositionDescriptor.sol"
	positionManagerSource    = "contracts/NonfungiblePositionManager.sol"
	v3MigratorSource         = "contracts/V3Migrator.sol"
	quoterV2Source           = "contracts/lens/QuoterV2.sol"
	swapRouterSource         = "contracts/SwapRouter.sol"
)

// PeripherySources lists every entry source the sequence compiles, relative to the
// contracts root.
func PeripherySources() []string {
	return []string{
		multicallSource,
		tickLensSource,
		nftDescriptorSource,
		positionDescriptorSource,
		positionManagerSource,
		v3MigratorSource,
		quoterV2Source,
		swapRouterSource,
	}
}

// ManifestKey pairs a persisted manifest key with the step producing its address.
type ManifestKey struct {
	Key  string
	Step string
}

// PeripheryManifestKeys is the fixed set of manifest keys in persisted order.
func PeripheryManifestKeys() []ManifestKey {
	return []ManifestKey{
		{Key: "multicall2Address", Step: StepMulticall},
		{Key: "tickLensAddress", Step: StepTickLens},
		{Key: "nftDescriptorLibraryAddress", Step: StepNFTDescriptor},
		{Key: "nonfungibleTokenPositionDescriptorAddress", Step: StepNonfungibleTokenPositionDescriptor},
		{Key: "nonfungibleTokenPositionManagerAddress", Step: StepNonfungiblePositionManager},
		{Key: "v3MigratorAddress", Step: StepV3Migrator},
		{Key: "quoterV2Address", Step: StepQuoterV2},
		{Key: "swapRouter02Address", Step: StepSwapRouter},
	}
}

// PeripherySequence is the static deployment order of the periphery against an existing
// core factory. cfg must be valid.
func PeripherySequence(cfg Config) (Sequence, error) {
	label, err := AsciiStringToBytes32(cfg.nativeCurrencyLabel())
	if err != nil {
		return nil, &ConfigurationError{Field: "native currency label", Err: err}
	}

	factory := Literal(cfg.FactoryAddress())
	weth9 := Literal(cfg.WETH9Address())

	seq := Sequence{{
		Name:         StepEnableFeeTier,
		Kind:         KindCall,
		Target:       factory,
		TargetABI:    UniswapV3Factory(),
		Method:       "enableFeeAmount",
		Args:         []ArgSource{Literal(big.NewInt(OneBPFee)), Literal(big.NewInt(OneBPTickSpacing))},
		RequireOwner: true,
		AppliedIf: &CallCondition{
			Method:    "feeAmountTickSpacing",
			Args:      []interface{}{big.NewInt(OneBPFee)},
			Satisfied: tickSpacingEnabled,
		},
		Describe: describeFeeTier,
	}, {
		Name: StepMulticall,
		Kind: KindContract,
	}, {
		Name: StepTickLens,
		Kind: KindContract,
	}, {
		Name: StepNFTDescriptor,
		Kind: KindContract,
	}, {
		Name: StepNonfungibleTokenPositionDescriptor,
		Kind: KindLinkedContract,
		Args: []ArgSource{weth9, Literal(label)},
		Link: &LibraryLink{
			Step:       StepNFTDescriptor,
			SourcePath: nftDescriptorSource,
			Library:    "NFTDescriptor",
		},
	}, {
		Name: StepNonfungiblePositionManager,
		Kind: KindContract,
		Args: []ArgSource{factory, weth9, Ref(StepNonfungibleTokenPositionDescriptor)},
	}, {
		Name: StepV3Migrator,
		Kind: KindContract,
		Args: []ArgSource{factory, weth9, Ref(StepNonfungiblePositionManager)},
	}, {
		Name: StepQuoterV2,
		Kind: KindContract,
		Args: []ArgSource{factory, weth9},
	}, {
		Name: StepSwapRouter,
		Kind: KindContract,
		Args: []ArgSource{factory, weth9},
	}}

	return seq, nil
}

// tickSpacingEnabled reports the one bp tier as applied only when it's enabled with the
// expected spacing. Zero spacing means the fee is not enabled yet.
func tickSpacingEnabled(out []interface{}) (bool, error) {
	if len(out) != 1 {
		return false, errors.Errorf("feeAmountTickSpacing returned %d values", len(out))
	}

	spacing, ok := out[0].(*big.Int)
	if !ok {
		return false, errors.Errorf("feeAmountTickSpacing returned %T", out[0])
	} else if spacing.Sign() == 0 {
		return false, nil
	} else if spacing.Cmp(big.NewInt(OneBPTickSpacing)) != 0 {
		return false, &FeeTierConflictError{
			Fee:      OneBPFee,
			Expected: OneBPTickSpacing,
			Actual:   spacing.Int64(),
		}
	}

	return true, nil
}

func describeFeeTier(args []interface{}) string {
	if len(args) != 2 {
		return "UniswapV3Factory enabled a new fee tier"
	}

	fee, _ := args[0].(*big.Int)
	spacing, _ := args[1].(*big.Int)
	if fee == nil || spacing == nil {
		return "UniswapV3Factory enabled a new fee tier"
	}

	// fee is in hundredths of a basis point
	bps := float64(fee.Int64()) / 100
	return fmt.Sprintf("UniswapV3Factory added a new fee tier %g bps with tick spacing %s", bps, spacing.String())
}

var (
	ErrLabelTooLong  = errors.New("label exceeds 32 bytes")
	ErrLabelNotASCII = errors.New("label is not ASCII")
)

// AsciiStringToBytes32 right-pads an ASCII string into a bytes32 value.
func AsciiStringToBytes32(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) > 32 {
		return out, ErrLabelTooLong
	}

	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return out, ErrLabelNotASCII
		}
	}

	copy(out[:], s)
	return out, nil
}
