package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	cli "github.com/jawher/mow.cli"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/deployer"
	"github.com/InjectiveLabs/v3-periphery-deploy/orchestrator"
)

func onDeploy(cmd *cli.Cmd) {
	cmd.Action = runDeploy
}

// runDeploy deploys the whole periphery on the selected network and writes its manifest.
func runDeploy() {
	net, err := networkFromOptions()
	if err != nil {
		log.WithError(err).Fatalln("failed to resolve network")
	}

	cfg := net.orchestratorConfig(*deploymentsDir)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatalln("invalid configuration")
	}

	d := initDeployer(net)
	fromAddress, signerFn := initSigner(d, net)

	log.WithField("network", net.Name).Infoln("deploying from", fromAddress.Hex())

	result, err := orchestrator.Run(context.Background(), cfg, orchestrator.Collaborators{
		Compiler: &artifactCompiler{d: d},
		Signer:   &txSigner{d: d, from: fromAddress, signerFn: signerFn},
		Reader:   &chainReader{d: d, from: fromAddress},
	})
	if err != nil {
		var stepErr *orchestrator.StepError
		if errors.As(err, &stepErr) {
			log.WithFields(log.Fields{
				"step":    stepErr.Step,
				"ordinal": stepErr.Ordinal,
			}).WithError(stepErr.Err).Fatalln("deployment aborted")
		}

		log.WithError(err).Fatalln("deployment failed")
	}

	for _, b := range result.Bindings {
		log.WithField("address", b.Address.Hex()).Infoln(b.Name)
	}

	fmt.Println(result.ManifestPath)
}

func initDeployer(net *network) deployer.Deployer {
	opts := []deployer.Option{
		deployer.OptionRPCTimeout(duration(*rpcTimeout, defaultRPCTimeout)),
		deployer.OptionCallTimeout(duration(*callTimeout, defaultCallTimeout)),
		deployer.OptionTxTimeout(duration(*txTimeout, defaultTxTimeout)),
		deployer.OptionEVMRPCEndpoint(net.RPC),
		deployer.OptionChainID(net.ChainID),
		deployer.OptionGasPrice(big.NewInt(int64(*gasPrice))),
		deployer.OptionGasLimit(uint64(*gasLimit)),
	}

	d, err := deployer.New(append(opts, buildOptions()...)...)
	if err != nil {
		log.WithError(err).Fatalln("failed to init deployer")
	}

	return d
}

func initSigner(d deployer.Deployer, net *network) (common.Address, bind.SignerFn) {
	client, err := d.Backend()
	if err != nil {
		log.WithError(err).Fatalln("failed to connect to network", net.Name)
	}

	chainID := client.PinnedChainID()
	log.WithFields(log.Fields{
		"network": net.Name,
		"chainID": chainID.String(),
	}).Infoln("connected to network")

	fromAddress, signerFn, err := initEthereumAccountsManager(
		chainID.Uint64(),
		keystoreDir,
		from,
		fromPassphrase,
		fromPrivKey,
		useLedger,
	)
	if err != nil {
		log.WithError(err).Fatalln("failed init SignerFn")
	}

	return fromAddress, signerFn
}
