package orchestrator

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireGovernanceOwner(t *testing.T) {
	ctx := context.Background()

	chain := newFakeChain(signerAddress)
	gate := NewPreconditionGate(chain, UniswapV3Factory())
	require.NoError(t, gate.RequireGovernanceOwner(ctx, factoryAddress, signerAddress))

	chain.owner = strangerAddress
	err := gate.RequireGovernanceOwner(ctx, factoryAddress, signerAddress)

	var failed *PreconditionFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, signerAddress, failed.Expected)
	assert.Equal(t, strangerAddress, failed.Actual)
	assert.Equal(t, factoryAddress, failed.Contract)
	assert.Contains(t, err.Error(), strangerAddress.Hex())
	assert.Contains(t, err.Error(), signerAddress.Hex())
	assert.Empty(t, chain.submitted)
}

func TestRequireGovernanceOwnerReadFailure(t *testing.T) {
	chain := newFakeChain(signerAddress)
	chain.readErr = errors.New("connection refused")

	gate := NewPreconditionGate(chain, UniswapV3Factory())
	err := gate.RequireGovernanceOwner(context.Background(), factoryAddress, signerAddress)
	require.Error(t, err)

	var failed *PreconditionFailedError
	assert.False(t, errors.As(err, &failed))
	assert.Contains(t, err.Error(), "connection refused")
}
