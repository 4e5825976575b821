package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	cli "github.com/jawher/mow.cli"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/deployer"
	"github.com/InjectiveLabs/v3-periphery-deploy/orchestrator"
	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

// buildOptions are the deployer options applicable to compilation.
func buildOptions() []deployer.Option {
	return []deployer.Option{
		deployer.OptionSolcPath(*solcPath),
		deployer.OptionSolcAllowedPaths(*solAllowedPaths),
		deployer.OptionContractsRoot(*contractsRoot),
		deployer.OptionSources(orchestrator.PeripherySources()),
		deployer.OptionRemappings(*remappings),
		deployer.OptionOptimizerRuns(*optimizerRuns),
		deployer.OptionEVMVersion(sol.EVMVersionIstanbul),
		deployer.OptionNoCache(*noCache),
		deployer.OptionBuildCacheDir(*buildCacheDir),
	}
}

func onBuild(cmd *cli.Cmd) {
	standardJSON := cmd.BoolOpt("j standard-json", false, "Output standard JSON for use in --standard-json of solc, also Etherscan verification")

	cmd.Action = func() {
		if *standardJSON {
			out, err := sol.NewStandardJSONInput(*contractsRoot, orchestrator.PeripherySources(), sol.Settings{
				OptimizerRuns: *optimizerRuns,
				EVMVersion:    sol.EVMVersionIstanbul,
				Remappings:    *remappings,
				Libraries:     sol.NewLibraries(),
			})
			if err != nil {
				log.Fatalln(err)
			}

			fmt.Println(string(out))
			return
		}

		d, err := deployer.New(buildOptions()...)
		if err != nil {
			log.WithError(err).Fatalln("failed to init deployer")
		}

		contracts, err := d.Build(context.Background(), sol.NewLibraries())
		if err != nil {
			log.Fatalln(err)
		}

		names := make([]string, 0, len(contracts))
		for name := range contracts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			contract := contracts[name]
			if !contract.Linked() {
				fmt.Printf("%s\t%s\tlinks %s\n", name, contract.SourcePath, strings.Join(contract.LinkReferences, ", "))
				continue
			}

			fmt.Printf("%s\t%s\t%d bytes\n", name, contract.SourcePath, (len(strings.TrimPrefix(contract.Bin, "0x")))/2)
		}
	}
}
