package deployer

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

func TestBuildCacheKeyTracksLibraries(t *testing.T) {
	assert := assert.New(t)

	root := t.TempDir()
	writeSource(t, root, "contracts/Descriptor.sol", "contract Descriptor {}")

	sources := []string{"contracts/Descriptor.sol"}
	unlinked, err := BuildCacheKey(root, sources, sol.Settings{OptimizerRuns: 200}, "0.7.6")
	require.NoError(t, err)

	again, err := BuildCacheKey(root, sources, sol.Settings{OptimizerRuns: 200, Libraries: sol.NewLibraries()}, "0.7.6")
	require.NoError(t, err)
	assert.Equal(unlinked, again)

	libs := sol.NewLibraries()
	libs.Bind("contracts/libraries/NFTDescriptor.sol", "NFTDescriptor", common.HexToAddress("0x01"))
	linked, err := BuildCacheKey(root, sources, sol.Settings{OptimizerRuns: 200, Libraries: libs}, "0.7.6")
	require.NoError(t, err)
	assert.NotEqual(unlinked, linked)

	otherCompiler, err := BuildCacheKey(root, sources, sol.Settings{OptimizerRuns: 200}, "0.8.0")
	require.NoError(t, err)
	assert.NotEqual(unlinked, otherCompiler)

	writeSource(t, root, "contracts/Descriptor.sol", "contract Descriptor { uint256 x; }")
	changed, err := BuildCacheKey(root, sources, sol.Settings{OptimizerRuns: 200}, "0.7.6")
	require.NoError(t, err)
	assert.NotEqual(unlinked, changed)

	_, err = BuildCacheKey(root, []string{"contracts/Missing.sol"}, sol.Settings{}, "0.7.6")
	assert.Error(err)
}

func TestBuildCacheStoreLoad(t *testing.T) {
	assert := assert.New(t)

	cache, err := NewBuildCache(filepath.Join(t.TempDir(), "build"), t.TempDir(), nil)
	require.NoError(t, err)

	_, err = cache.LoadContracts("abcdef")
	assert.Equal(ErrNoCache, err)

	contracts := map[string]*sol.Contract{
		"NonfungibleTokenPositionDescriptor": {
			Name:           "NonfungibleTokenPositionDescriptor",
			SourcePath:     "contracts/NonfungibleTokenPositionDescriptor.sol",
			LinkReferences: []string{"contracts/libraries/NFTDescriptor.sol:NFTDescriptor"},
			ABI:            []byte(`[]`),
			Bin:            "6080",
		},
	}
	require.NoError(t, cache.StoreContracts("abcdef", contracts))

	loaded, err := cache.LoadContracts("abcdef")
	require.NoError(t, err)
	if assert.Contains(loaded, "NonfungibleTokenPositionDescriptor") {
		assert.False(loaded["NonfungibleTokenPositionDescriptor"].Linked())
		assert.Equal("6080", loaded["NonfungibleTokenPositionDescriptor"].Bin)
	}

	require.NoError(t, cache.Clear())
	_, err = cache.LoadContracts("abcdef")
	assert.Equal(ErrNoCache, err)
}

func TestBuildCacheTracksImportedSources(t *testing.T) {
	assert := assert.New(t)

	root := t.TempDir()
	writeSource(t, root, "contracts/NonfungibleTokenPositionDescriptor.sol", "import './libraries/NFTSVG.sol';")
	writeSource(t, root, "contracts/libraries/NFTSVG.sol", "library NFTSVG {}")
	writeSource(t, root, "node_modules/@uniswap/v3-core/contracts/interfaces/IUniswapV3Pool.sol", "interface IUniswapV3Pool {}")

	cache, err := NewBuildCache(filepath.Join(t.TempDir(), "build"), root, []string{"@uniswap/=node_modules/@uniswap/"})
	require.NoError(t, err)

	contracts := map[string]*sol.Contract{
		"NonfungibleTokenPositionDescriptor": {
			Name:       "NonfungibleTokenPositionDescriptor",
			SourcePath: "contracts/NonfungibleTokenPositionDescriptor.sol",
			AllPaths: []string{
				"contracts/NonfungibleTokenPositionDescriptor.sol",
				"contracts/libraries/NFTSVG.sol",
				"@uniswap/v3-core/contracts/interfaces/IUniswapV3Pool.sol",
			},
			ABI: []byte(`[]`),
			Bin: "6080",
		},
	}
	require.NoError(t, cache.StoreContracts("abcdef", contracts))

	loaded, err := cache.LoadContracts("abcdef")
	require.NoError(t, err)
	assert.Len(loaded, 1)

	// a remapped import changes
	writeSource(t, root, "node_modules/@uniswap/v3-core/contracts/interfaces/IUniswapV3Pool.sol", "interface IUniswapV3Pool { }")
	_, err = cache.LoadContracts("abcdef")
	assert.True(errors.Is(err, ErrStaleCache))

	require.NoError(t, cache.StoreContracts("abcdef", contracts))
	_, err = cache.LoadContracts("abcdef")
	require.NoError(t, err)

	// a transitively imported file changes
	writeSource(t, root, "contracts/libraries/NFTSVG.sol", "library NFTSVG { }")
	_, err = cache.LoadContracts("abcdef")
	assert.True(errors.Is(err, ErrStaleCache))

	// an imported file disappears
	require.NoError(t, cache.StoreContracts("abcdef", contracts))
	require.NoError(t, os.Remove(filepath.Join(root, "contracts/libraries/NFTSVG.sol")))
	_, err = cache.LoadContracts("abcdef")
	assert.True(errors.Is(err, ErrStaleCache))
}

func TestOptions(t *testing.T) {
	assert := assert.New(t)

	_, err := New(OptionGasLimit(100))
	assert.Error(err)

	_, err = New(OptionBuildCacheDir(""))
	assert.Error(err)

	_, err = New(OptionSources(nil))
	assert.Error(err)

	d, err := New(
		OptionGasLimit(0),
		OptionGasPrice(big.NewInt(0)),
		OptionTxTimeout(time.Microsecond),
		OptionSources([]string{"contracts/TickLens.sol"}),
	)
	require.NoError(t, err)

	opts := d.(*deployer).options
	assert.Nil(opts.GasPrice)
	assert.Zero(opts.GasLimit)
	assert.Equal(2*time.Minute, opts.TxTimeout)
	assert.Equal([]string{"contracts/TickLens.sol"}, opts.Sources)
}

func TestHomesteadSignerFn(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(pk.PublicKey)

	signerFn, err := getSignerFn(SignerHomestead, big.NewInt(1), from, pk)
	require.NoError(t, err)

	tx := types.NewContractCreation(0, big.NewInt(0), 100000, big.NewInt(1), []byte{0x60, 0x80})
	signed, err := signerFn(from, tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.HomesteadSigner{}, signed)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	_, err = signerFn(common.HexToAddress("0x01"), tx)
	assert.Error(t, err)

	_, err = getSignerFn(SignerEIP155, big.NewInt(1), from, nil)
	assert.Equal(t, ErrNoSigner, err)
}

func TestDecodeBytecode(t *testing.T) {
	assert := assert.New(t)

	bin, err := decodeBytecode(&sol.Contract{Name: "TickLens", Bin: "0x6080"})
	assert.NoError(err)
	assert.Equal([]byte{0x60, 0x80}, bin)

	_, err = decodeBytecode(&sol.Contract{
		Name:           "NonfungibleTokenPositionDescriptor",
		Bin:            "6080__$cea9be979eee3d87fb124d6cbb244bb0b5$__",
		LinkReferences: []string{"contracts/libraries/NFTDescriptor.sol:NFTDescriptor"},
	})
	assert.Equal(ErrUnlinkedBytecode, errors.Cause(err))

	_, err = decodeBytecode(&sol.Contract{Name: "IMulticall"})
	assert.Error(err)
}

func writeSource(t *testing.T, root, name, contents string) {
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}
