package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	cli "github.com/jawher/mow.cli"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/deployer"
	"github.com/InjectiveLabs/v3-periphery-deploy/orchestrator"
)

// onCheck runs the governance precondition of the deployment without sending anything.
func onCheck(cmd *cli.Cmd) {
	fromAddress := cmd.StringOpt("from", "", "Check ownership for this address instead of the configured signer's.")

	cmd.Action = func() {
		net, err := networkFromOptions()
		if err != nil {
			log.WithError(err).Fatalln("failed to resolve network")
		}

		cfg := net.orchestratorConfig(*deploymentsDir)
		if err := cfg.Validate(); err != nil {
			log.WithError(err).Fatalln("invalid configuration")
		}

		d, err := deployer.New(
			deployer.OptionRPCTimeout(duration(*rpcTimeout, defaultRPCTimeout)),
			deployer.OptionCallTimeout(duration(*callTimeout, defaultCallTimeout)),
			deployer.OptionEVMRPCEndpoint(net.RPC),
		)
		if err != nil {
			log.WithError(err).Fatalln("failed to init deployer")
		}

		var caller common.Address
		if len(*fromAddress) > 0 {
			if caller, err = parseFromAddress(*fromAddress); err != nil {
				log.Fatalln(err)
			}
		} else {
			caller, _ = initSigner(d, net)
		}

		log.Println("target factory", cfg.FactoryAddress().Hex())
		log.Println("using from address", caller.Hex())

		reader := &chainReader{d: d, from: caller}
		gate := orchestrator.NewPreconditionGate(reader, orchestrator.UniswapV3Factory())

		ctx := context.Background()
		if err := gate.RequireGovernanceOwner(ctx, cfg.FactoryAddress(), caller); err != nil {
			log.WithError(err).Fatalln("governance precondition failed")
		}

		out, err := reader.Call(ctx, orchestrator.UniswapV3Factory(), cfg.FactoryAddress(), "feeAmountTickSpacing", big.NewInt(orchestrator.OneBPFee))
		if err != nil {
			log.WithError(err).Fatalln("failed to read fee tier")
		}

		var spacing *big.Int
		if len(out) == 1 {
			spacing, _ = out[0].(*big.Int)
		}

		if spacing == nil || spacing.Sign() == 0 {
			fmt.Printf("%s owns the factory, fee tier %d is not enabled yet\n", caller.Hex(), orchestrator.OneBPFee)
			return
		}

		fmt.Printf("%s owns the factory, fee tier %d is enabled with tick spacing %s\n", caller.Hex(), orchestrator.OneBPFee, spacing.String())
	}
}
