package deployer

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

type ContractCallOpts struct {
	From     common.Address
	Contract *sol.Contract
	Address  common.Address
}

func (d *deployer) Call(
	ctx context.Context,
	callOpts ContractCallOpts,
	methodName string,
	methodArgs ...interface{},
) (output []interface{}, err error) {
	if callOpts.Contract == nil {
		return nil, ErrNoContract
	}

	contractABI, err := parseContractABI(callOpts.Contract)
	if err != nil {
		return nil, err
	}

	method, ok := contractABI.Methods[methodName]
	if !ok {
		err := errors.Errorf("method not found: %s", methodName)
		log.WithField("contract", callOpts.Contract.Name).WithError(err).Errorln("failed to prepare call")
		return nil, err
	}

	calldata, err := contractABI.Pack(methodName, methodArgs...)
	if err != nil {
		err = errors.Wrap(err, "failed to ABI-encode method args")
		return nil, err
	}

	client, err := d.Backend()
	if err != nil {
		return nil, err
	}

	callCtx, cancelFn := context.WithTimeout(ctx, d.options.CallTimeout)
	defer cancelFn()

	contractAddress := callOpts.Address
	res, err := client.CallContract(callCtx, ethereum.CallMsg{
		From: callOpts.From,
		To:   &contractAddress,
		Data: calldata,
	}, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to call contract method")
		return nil, err
	}

	output, err = method.Outputs.Unpack(res)
	if err != nil {
		err = errors.Wrapf(err, "failed to unpack ABI response of %s", methodName)
		return nil, err
	}

	return output, nil
}
