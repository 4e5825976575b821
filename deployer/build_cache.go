package deployer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

var (
	ErrNoCache    = errors.New("no cached version")
	ErrStaleCache = errors.New("cached version built from other sources")
)

type BuildCache interface {
	StoreContracts(key string, contracts map[string]*sol.Contract) error
	LoadContracts(key string) (contracts map[string]*sol.Contract, err error)
	Clear() error
}

type BuildCacheEntry struct {
	Timestamp time.Time                 `json:"timestamp"`
	Key       string                    `json:"key"`
	Sources   map[string]string         `json:"sources,omitempty"`
	Contracts []BuildCacheContractEntry `json:"contracts"`
}

type BuildCacheContractEntry struct {
	ContractName    string          `json:"contractName"`
	SourcePath      string          `json:"sourcePath"`
	AllPaths        []string        `json:"allPaths"`
	CompilerVersion string          `json:"compilerVersion"`
	LinkReferences  []string        `json:"linkReferences,omitempty"`
	ABI             json.RawMessage `json:"abi"`
	Bin             string          `json:"bin"`
}

type buildCache struct {
	prefix     string
	root       string
	remappings []string
}

// NewBuildCache stores entries under prefix. Source unit names of cached contracts are
// resolved against root through remappings, so that every imported file is verified on load.
func NewBuildCache(prefix, root string, remappings []string) (BuildCache, error) {
	if err := os.MkdirAll(prefix, 0755); err != nil {
		err = errors.Wrap(err, "failed to prepare build cache dir")
		return nil, err
	}

	c := &buildCache{
		prefix:     prefix,
		root:       root,
		remappings: remappings,
	}

	return c, nil
}

// BuildCacheKey digests source contents, compiler settings (library bindings included)
// and the compiler version, so any rebind yields a different key.
func BuildCacheKey(root string, sources []string, settings sol.Settings, compilerVersion string) (string, error) {
	sorted := append([]string{}, sources...)
	sort.Strings(sorted)

	parts := make([]string, 0, len(sorted)+4)
	for _, srcPath := range sorted {
		hash, err := sha3file(filepath.Join(root, srcPath))
		if err != nil {
			err = errors.Wrap(err, "failed to hash source")
			return "", err
		}

		parts = append(parts, srcPath+"="+hash)
	}

	parts = append(parts,
		fmt.Sprintf("optimizer=%d", settings.OptimizerRuns),
		fmt.Sprintf("evm=%s", settings.EVMVersion),
		fmt.Sprintf("remappings=%s", strings.Join(settings.Remappings, ",")),
		fmt.Sprintf("libraries=%s", settings.Libraries.Fingerprint()),
		fmt.Sprintf("solc=%s", compilerVersion),
	)

	return crypto.Keccak256Hash([]byte(strings.Join(parts, "\n"))).Hex()[2:], nil
}

func (b *buildCache) entryPath(key string) string {
	return filepath.Join(b.prefix, fmt.Sprintf("sol_%s.json", key))
}

func (b *buildCache) StoreContracts(key string, contracts map[string]*sol.Contract) error {
	entry := &BuildCacheEntry{
		Timestamp: time.Now().UTC(),
		Key:       key,
		Contracts: make([]BuildCacheContractEntry, 0, len(contracts)),
	}

	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, unit := range contracts[name].AllPaths {
			if _, ok := entry.Sources[unit]; ok {
				continue
			}

			hash, err := sha3file(b.sourceFile(unit))
			if err != nil {
				err = errors.Wrapf(err, "failed to hash imported source %s", unit)
				return err
			}

			if entry.Sources == nil {
				entry.Sources = make(map[string]string)
			}
			entry.Sources[unit] = hash
		}
	}

	for _, name := range names {
		contract := contracts[name]
		entry.Contracts = append(entry.Contracts, BuildCacheContractEntry{
			ContractName:    contract.Name,
			SourcePath:      contract.SourcePath,
			AllPaths:        contract.AllPaths,
			CompilerVersion: contract.CompilerVersion,
			LinkReferences:  contract.LinkReferences,
			ABI:             json.RawMessage(contract.ABI),
			Bin:             contract.Bin,
		})
	}

	entryContents, err := json.MarshalIndent(entry, "", "\t")
	if err != nil {
		err = errors.Wrap(err, "failed to marshal cache entry")
		return err
	}

	if err := os.WriteFile(b.entryPath(key), entryContents, 0644); err != nil {
		err = errors.Wrap(err, "failed write cache entry file")
		return err
	}

	return nil
}

func (b *buildCache) LoadContracts(key string) (contracts map[string]*sol.Contract, err error) {
	entryContents, err := os.ReadFile(b.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCache
		}

		err = errors.Wrap(err, "failed read cache entry file")
		return nil, err
	}

	var entry BuildCacheEntry
	if err := json.Unmarshal(entryContents, &entry); err != nil {
		err = errors.Wrap(err, "failed to unmarshal cache entry")
		return nil, err
	} else if entry.Key != key {
		err = errors.New("cache entry key mismatch")
		return nil, err
	}

	for unit, expected := range entry.Sources {
		hash, err := sha3file(b.sourceFile(unit))
		if err != nil || hash != expected {
			return nil, errors.Wrap(ErrStaleCache, unit)
		}
	}

	contracts = make(map[string]*sol.Contract, len(entry.Contracts))
	for _, c := range entry.Contracts {
		contracts[c.ContractName] = &sol.Contract{
			Name:            c.ContractName,
			SourcePath:      c.SourcePath,
			AllPaths:        c.AllPaths,
			CompilerVersion: c.CompilerVersion,
			LinkReferences:  c.LinkReferences,
			ABI:             []byte(c.ABI),
			Bin:             c.Bin,
		}
	}

	return contracts, nil
}

func (b *buildCache) Clear() error {
	return filepath.Walk(b.prefix, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		} else if path == b.prefix {
			return nil
		} else if info.IsDir() {
			return nil
		}

		if filepath.Ext(info.Name()) == ".json" {
			if err := os.Remove(path); err != nil {
				log.WithError(err).Warningln("failed to cleanup", path)
			}
		}

		return nil
	})
}

// sourceFile maps a solc source unit name to a file, applying the longest matching
// remapping prefix.
func (b *buildCache) sourceFile(unit string) string {
	var prefix, target string
	for _, remapping := range b.remappings {
		// context:prefix=target
		if idx := strings.Index(remapping, ":"); idx >= 0 && idx < strings.Index(remapping, "=") {
			remapping = remapping[idx+1:]
		}

		parts := strings.SplitN(remapping, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(unit, parts[0]) {
			continue
		} else if len(parts[0]) > len(prefix) {
			prefix, target = parts[0], parts[1]
		}
	}

	path := target + strings.TrimPrefix(unit, prefix)
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(b.root, path)
}

func sha3file(path string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrap(err, "failed to read .sol file")
		return "", err
	}

	return crypto.Keccak256Hash(contents).Hex()[2:], nil
}
