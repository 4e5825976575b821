package deployer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

var (
	ErrCompilerNotFound  = errors.New("unable to locate Solidity compiler")
	ErrCompilationFailed = errors.New("failed to compile contract code")
	ErrNoSources         = errors.New("no Solidity sources configured")
)

func (d *deployer) Build(
	ctx context.Context,
	libs sol.Libraries,
) (map[string]*sol.Contract, error) {
	if len(d.options.Sources) == 0 {
		return nil, ErrNoSources
	}

	solc, err := d.Compiler()
	if err != nil {
		return nil, err
	}

	root, _ := filepath.Abs(d.options.ContractsRoot)
	settings := sol.Settings{
		OptimizerRuns: d.options.OptimizerRuns,
		EVMVersion:    d.options.EVMVersion,
		Remappings:    d.options.Remappings,
		Libraries:     libs,
	}

	var cache BuildCache
	var cacheKey string
	if !d.options.NoCache {
		cacheLog := log.WithField("cache_dir", d.options.BuildCacheDir)

		if cache, err = NewBuildCache(d.options.BuildCacheDir, root, d.options.Remappings); err != nil {
			cacheLog.WithError(err).Warningln("failed to use build cache dir")
		} else if cacheKey, err = BuildCacheKey(root, d.options.Sources, settings, solc.Version()); err != nil {
			cacheLog.WithError(err).Warningln("failed to compute build cache key")
			cache = nil
		} else {
			contracts, err := cache.LoadContracts(cacheKey)
			if err == nil {
				cacheLog.WithField("key", cacheKey).Debugln("loaded contracts from build cache")
				return contracts, nil
			} else if errors.Is(err, ErrStaleCache) {
				cacheLog.WithError(err).Infoln("imported sources changed, rebuilding")
			} else if err != ErrNoCache {
				cacheLog.WithError(err).Warningln("failed to use build cache")
			}
		}
	}

	ts := time.Now()

	contracts, err := solc.Compile(root, d.options.Sources, settings)
	if err != nil {
		log.WithFields(log.Fields{
			"root":      root,
			"sources":   d.options.Sources,
			"libraries": libs.String(),
		}).WithError(err).Errorln("failed to compile .sol files")

		return nil, errors.Wrap(ErrCompilationFailed, err.Error())
	}

	log.Debugln("compiled sources in", time.Since(ts))

	for name := range contracts {
		log.Debugln("found", name, "contract")
	}

	if cache != nil {
		if err := cache.StoreContracts(cacheKey, contracts); err != nil {
			log.WithField("cache_dir", d.options.BuildCacheDir).WithError(err).Warningln("failed to store contract code in build cache")
		}
	}

	return contracts, nil
}

func (d *deployer) Compiler() (sol.Compiler, error) {
	d.initCompilerOnce.Do(func() {
		solcPath := d.options.SolcPath
		if !d.options.SolcPathSet {
			solcPathFound, err := sol.WhichSolc()
			if err != nil {
				log.WithError(err).Errorln("failed to find solc compiler")
				return
			}

			solcPath = solcPathFound
		}

		solc, err := sol.NewSolCompiler(solcPath)
		if err != nil {
			log.WithField("path", solcPath).WithError(err).Errorln("failed to find solc compiler at path")
			return
		}

		if len(d.options.SolcAllowedPaths) > 0 {
			solc.SetAllowPaths(d.options.SolcAllowedPaths)
		}

		d.compiler = solc
	})

	if d.compiler == nil {
		return nil, ErrCompilerNotFound
	}

	return d.compiler, nil
}
