package orchestrator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"
)

type StepState int

const (
	StepPending StepState = iota
	StepRunning
	StepSucceeded
	StepFailed
)

func (s StepState) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepSucceeded:
		return "succeeded"
	case StepFailed:
		return "failed"
	default:
		return fmt.Sprintf("StepState(%d)", int(s))
	}
}

type RunState int

const (
	RunPending RunState = iota
	RunInProgress
	RunCompleted
	RunAborted
)

func (s RunState) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunInProgress:
		return "in progress"
	case RunCompleted:
		return "completed"
	case RunAborted:
		return "aborted"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

var (
	ErrRunAlreadyStarted = errors.New("sequence already ran")
	ErrNoContractAddress = errors.New("receipt carries no contract address")
	ErrNoGate            = errors.New("no precondition gate configured")
)

type StepReport struct {
	Name    string
	Ordinal int
	Kind    StepKind
	State   StepState
	TxHash  common.Hash
	Address common.Address
	Skipped bool
	Err     error
}

// Sequencer runs steps strictly one after another, each only once its predecessor
// is confirmed. The first failure aborts the run, nothing is rolled back.
type Sequencer struct {
	steps    Sequence
	signer   Signer
	reader   ChainReader
	gate     *PreconditionGate
	binder   *LibraryBinder
	resolver *AddressResolver

	state   RunState
	reports []StepReport
}

func NewSequencer(
	steps Sequence,
	signer Signer,
	reader ChainReader,
	binder *LibraryBinder,
	gate *PreconditionGate,
) (*Sequencer, error) {
	if err := steps.Validate(); err != nil {
		err = errors.Wrap(err, "invalid deployment sequence")
		return nil, err
	}

	if gate == nil {
		for _, step := range steps {
			if step.RequireOwner {
				err := errors.Wrapf(ErrNoGate, "step %s requires the governance owner", step.Name)
				return nil, err
			}
		}
	}

	reports := make([]StepReport, len(steps))
	for idx, step := range steps {
		reports[idx] = StepReport{
			Name:    step.Name,
			Ordinal: idx + 1,
			Kind:    step.Kind,
			State:   StepPending,
		}
	}

	s := &Sequencer{
		steps:    steps,
		signer:   signer,
		reader:   reader,
		gate:     gate,
		binder:   binder,
		resolver: NewAddressResolver(),
		state:    RunPending,
		reports:  reports,
	}

	return s, nil
}

func (s *Sequencer) State() RunState {
	return s.state
}

func (s *Sequencer) Resolver() *AddressResolver {
	return s.resolver
}

// Report returns a copy of every step's outcome so far.
func (s *Sequencer) Report() []StepReport {
	return append([]StepReport{}, s.reports...)
}

// Run executes every step in order. A returned error is always a *StepError.
func (s *Sequencer) Run(ctx context.Context) error {
	if s.state != RunPending {
		return ErrRunAlreadyStarted
	}

	s.state = RunInProgress

	for idx, step := range s.steps {
		report := &s.reports[idx]
		report.State = StepRunning

		stepLog := log.WithFields(log.Fields{
			"step":    step.Name,
			"ordinal": report.Ordinal,
			"kind":    step.Kind.String(),
		})
		stepLog.Infoln("running step")

		if err := s.runStep(ctx, step, report); err != nil {
			report.State = StepFailed
			report.Err = err
			s.state = RunAborted

			stepLog.WithError(err).Errorln("step failed, aborting run")
			return &StepError{
				Step:    step.Name,
				Ordinal: report.Ordinal,
				Err:     err,
			}
		}

		report.State = StepSucceeded
	}

	s.state = RunCompleted
	log.WithField("bindings", s.resolver.Len()).Infoln("all steps completed")

	return nil
}

func (s *Sequencer) runStep(ctx context.Context, step Step, report *StepReport) error {
	switch step.Kind {
	case KindContract:
		return s.deploy(ctx, step, report)
	case KindLinkedContract:
		libAddress, err := s.resolver.Resolve(step.Link.Step)
		if err != nil {
			return &UnknownReferenceError{Name: step.Link.Step, From: step.Name}
		}

		if err := s.binder.BindLibrary(ctx, step.Link.SourcePath, step.Link.Library, libAddress); err != nil {
			return err
		}

		return s.deploy(ctx, step, report)
	case KindCall:
		return s.call(ctx, step, report)
	default:
		return errors.Errorf("unknown step kind %s", step.Kind)
	}
}

func (s *Sequencer) deploy(ctx context.Context, step Step, report *StepReport) error {
	contract, err := s.binder.Artifact(ctx, step.artifactName())
	if err != nil {
		return err
	}

	args, err := step.resolveArgs(s.resolver)
	if err != nil {
		return err
	}

	receipt, err := s.submit(ctx, step, report, TxRequest{
		Contract: contract,
		Args:     args,
	})
	if err != nil {
		return err
	}

	if receipt.ContractAddress == (common.Address{}) {
		return &TransactionFailureError{Step: step.Name, TxHash: report.TxHash, Err: ErrNoContractAddress}
	}

	if err := s.resolver.Record(step.Name, receipt.ContractAddress); err != nil {
		return err
	}
	report.Address = receipt.ContractAddress

	log.WithFields(log.Fields{
		"step":    step.Name,
		"address": receipt.ContractAddress.Hex(),
		"txHash":  report.TxHash.Hex(),
	}).Infoln("deployed", contract.Name)

	return nil
}

func (s *Sequencer) call(ctx context.Context, step Step, report *StepReport) error {
	target, err := step.resolveTarget(s.resolver)
	if err != nil {
		return err
	}

	if step.RequireOwner {
		if err := s.gate.RequireGovernanceOwner(ctx, target, s.signer.Address()); err != nil {
			return err
		}
	}

	args, err := step.resolveArgs(s.resolver)
	if err != nil {
		return err
	}

	if step.AppliedIf != nil {
		applied, err := step.AppliedIf.check(ctx, s.reader, step.TargetABI, target)
		if err != nil {
			return err
		} else if applied {
			report.Skipped = true
			log.WithField("step", step.Name).Infoln("already applied on-chain:", describe(step, args))
			return nil
		}
	}

	if _, err := s.submit(ctx, step, report, TxRequest{
		Contract: step.TargetABI,
		To:       &target,
		Method:   step.Method,
		Args:     args,
	}); err != nil {
		return err
	}

	log.Infoln(describe(step, args))
	log.Infoln(report.TxHash.Hex())

	return nil
}

func (s *Sequencer) submit(ctx context.Context, step Step, report *StepReport, req TxRequest) (*types.Receipt, error) {
	pending, err := s.signer.Submit(ctx, req)
	if err != nil {
		return nil, &TransactionFailureError{Step: step.Name, Err: err}
	}

	report.TxHash = pending.Hash()

	receipt, err := pending.Await(ctx)
	if err != nil {
		return nil, &TransactionFailureError{Step: step.Name, TxHash: report.TxHash, Err: err}
	} else if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &TransactionFailureError{Step: step.Name, TxHash: report.TxHash, Err: errors.New("transaction reverted")}
	}

	return receipt, nil
}

func describe(step Step, args []interface{}) string {
	if step.Describe != nil {
		return step.Describe(args)
	}

	return fmt.Sprintf("%s.%s%v", step.TargetABI.Name, step.Method, args)
}
