package main

import (
	"os"

	cli "github.com/jawher/mow.cli"
	"github.com/joho/godotenv"
	log "github.com/xlab/suplog"
)

var app = cli.App("v3-periphery-deploy", "Deploys Uniswap V3 periphery contracts against an existing core factory. Requires solc 0.7.6")

func main() {
	// environment set explicitly wins over .env
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warningln("failed to load .env")
	}

	app.Before = func() {
		log.DefaultLogger.SetLevel(logLevelFromString(*logLevel))
	}

	app.Action = runDeploy

	app.Command("deploy", "Deploys the periphery on the selected network and writes its manifest. Default action.", onDeploy)
	app.Command("build", "Builds periphery contracts and caches build artefacts. Optional step.", onBuild)
	app.Command("check", "Checks the factory governance precondition without sending transactions.", onCheck)
	app.Command("manifest", "Prints the deployment manifest of the selected network.", onManifest)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func logLevelFromString(s string) log.Level {
	switch s {
	case "1", "error":
		return log.ErrorLevel
	case "2", "warn":
		return log.WarnLevel
	case "3", "info":
		return log.InfoLevel
	case "4", "debug":
		return log.DebugLevel
	default:
		return log.FatalLevel
	}
}
