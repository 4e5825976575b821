package main

import (
	"fmt"

	cli "github.com/jawher/mow.cli"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/orchestrator"
)

func onManifest(cmd *cli.Cmd) {
	cmd.Action = func() {
		path := orchestrator.ManifestPath(*deploymentsDir, *networkName)

		manifest, err := orchestrator.ReadManifest(path)
		if err != nil {
			log.WithField("path", path).WithError(err).Fatalln("no valid manifest")
		}

		for _, key := range orchestrator.PeripheryManifestKeys() {
			fmt.Printf("%s\t%s\n", key.Key, manifest[key.Key].Hex())
		}
	}
}
