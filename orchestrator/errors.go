package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ConfigurationError means a required setting is absent or malformed. No transaction
// has been sent when it's returned.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

type DuplicateBindingError struct {
	Name     string
	Existing common.Address
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("%s is already bound to %s", e.Name, e.Existing.Hex())
}

type UnknownReferenceError struct {
	Name string
	// From is the step holding the reference, empty when resolved directly.
	From string
}

func (e *UnknownReferenceError) Error() string {
	if len(e.From) > 0 {
		return fmt.Sprintf("step %s references %s which has no address bound", e.From, e.Name)
	}

	return fmt.Sprintf("no address bound for %s", e.Name)
}

type PreconditionFailedError struct {
	Contract common.Address
	Expected common.Address
	Actual   common.Address
}

func (e *PreconditionFailedError) Error() string {
	return fmt.Sprintf("governance owner of %s is %s, expected %s",
		e.Contract.Hex(), e.Actual.Hex(), e.Expected.Hex())
}

// TransactionFailureError means a submission was rejected or the mined transaction
// reverted. TxHash is zero when the node never accepted it.
type TransactionFailureError struct {
	Step   string
	TxHash common.Hash
	Err    error
}

func (e *TransactionFailureError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("transaction of %s failed: %v", e.Step, e.Err)
	}

	return fmt.Sprintf("transaction %s of %s failed: %v", e.TxHash.Hex(), e.Step, e.Err)
}

func (e *TransactionFailureError) Unwrap() error { return e.Err }

// FeeTierConflictError means the fee is already enabled on-chain with another tick spacing.
type FeeTierConflictError struct {
	Fee      int64
	Expected int64
	Actual   int64
}

func (e *FeeTierConflictError) Error() string {
	return fmt.Sprintf("fee tier %d is enabled with tick spacing %d, expected %d", e.Fee, e.Actual, e.Expected)
}

type RecompileError struct {
	Artifact string
	Err      error
}

func (e *RecompileError) Error() string {
	if len(e.Artifact) > 0 {
		return fmt.Sprintf("no usable artifact for %s: %v", e.Artifact, e.Err)
	}

	return fmt.Sprintf("recompilation failed: %v", e.Err)
}

func (e *RecompileError) Unwrap() error { return e.Err }

type IncompleteManifestError struct {
	Network string
	Missing []string
	Err     error
}

func (e *IncompleteManifestError) Error() string {
	return fmt.Sprintf("manifest for %s is incomplete, missing %s", e.Network, strings.Join(e.Missing, ", "))
}

func (e *IncompleteManifestError) Unwrap() error { return e.Err }

// StepError names the step that aborted the run.
type StepError struct {
	Step    string
	Ordinal int
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step #%d %s: %v", e.Ordinal, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
