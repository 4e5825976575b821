package orchestrator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

type StepKind int

const (
	// KindContract deploys a fresh contract.
	KindContract StepKind = iota
	// KindLinkedContract deploys a contract after linking a library deployed earlier.
	KindLinkedContract
	// KindCall submits a state-mutating call on an existing contract.
	KindCall
)

func (k StepKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindLinkedContract:
		return "library-linked contract"
	case KindCall:
		return "call"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// ArgSource is either a literal value or the address bound by an earlier step.
type ArgSource struct {
	literal interface{}
	ref     string
}

func Literal(v interface{}) ArgSource {
	return ArgSource{literal: v}
}

func Ref(step string) ArgSource {
	return ArgSource{ref: step}
}

func (a ArgSource) IsRef() bool {
	return len(a.ref) > 0
}

func (a ArgSource) RefName() string {
	return a.ref
}

func (a ArgSource) resolve(r *AddressResolver, from string) (interface{}, error) {
	if !a.IsRef() {
		return a.literal, nil
	}

	address, err := r.Resolve(a.ref)
	if err != nil {
		return nil, &UnknownReferenceError{Name: a.ref, From: from}
	}

	return address, nil
}

// LibraryLink names the library step whose address must be linked before the step's
// artifact is compiled.
type LibraryLink struct {
	Step       string
	SourcePath string
	Library    string
}

// CallCondition is a read-only call telling whether a call step already took effect.
// Satisfied returns an error when the on-chain state conflicts with the call's intent.
type CallCondition struct {
	Method    string
	Args      []interface{}
	Satisfied func(out []interface{}) (bool, error)
}

type Step struct {
	// Name is the logical contract name, unique within a sequence.
	Name string
	Kind StepKind

	// Artifact is the compiled contract to deploy, defaults to Name.
	Artifact string
	Args     []ArgSource

	// Link is required for KindLinkedContract.
	Link *LibraryLink

	// Target, TargetABI and Method describe a KindCall step.
	Target    ArgSource
	TargetABI *sol.Contract
	Method    string
	// RequireOwner makes the signer's governance ownership of Target a precondition.
	RequireOwner bool
	// AppliedIf skips the call when its condition reports the effect is already in place.
	AppliedIf *CallCondition
	// Describe renders the call's effect for the confirmation log.
	Describe func(args []interface{}) string
}

func (s Step) artifactName() string {
	if len(s.Artifact) > 0 {
		return s.Artifact
	}

	return s.Name
}

func (s Step) references() []string {
	var refs []string
	for _, arg := range s.Args {
		if arg.IsRef() {
			refs = append(refs, arg.RefName())
		}
	}

	if s.Target.IsRef() {
		refs = append(refs, s.Target.RefName())
	}

	if s.Link != nil {
		refs = append(refs, s.Link.Step)
	}

	return refs
}

// Sequence is the ordered list of steps of a run. A step's ordinal is its index + 1.
type Sequence []Step

// Validate checks the sequence as authored: unique names, every reference naming a
// step strictly earlier, and per-kind required fields.
func (seq Sequence) Validate() error {
	var result error

	seen := make(map[string]StepKind, len(seq))
	for idx, step := range seq {
		ordinal := idx + 1

		if len(step.Name) == 0 {
			result = multierror.Append(result, errors.Errorf("step #%d has no name", ordinal))
			continue
		} else if _, ok := seen[step.Name]; ok {
			result = multierror.Append(result, errors.Errorf("step #%d %s is declared twice", ordinal, step.Name))
		}

		for _, ref := range step.references() {
			if _, ok := seen[ref]; !ok {
				result = multierror.Append(result, &UnknownReferenceError{Name: ref, From: step.Name})
			}
		}

		switch step.Kind {
		case KindContract:
		case KindLinkedContract:
			if step.Link == nil {
				result = multierror.Append(result, errors.Errorf("step #%d %s has no library link", ordinal, step.Name))
			} else if kind, ok := seen[step.Link.Step]; ok && kind == KindCall {
				result = multierror.Append(result, errors.Errorf("step #%d %s links a call step %s", ordinal, step.Name, step.Link.Step))
			}
		case KindCall:
			if step.TargetABI == nil || len(step.Method) == 0 {
				result = multierror.Append(result, errors.Errorf("step #%d %s has no target method", ordinal, step.Name))
			} else if !step.Target.IsRef() {
				if _, ok := step.Target.literal.(common.Address); !ok {
					result = multierror.Append(result, errors.Errorf("step #%d %s has no target address", ordinal, step.Name))
				}
			}
		default:
			result = multierror.Append(result, errors.Errorf("step #%d %s has unknown kind %s", ordinal, step.Name, step.Kind))
		}

		seen[step.Name] = step.Kind
	}

	return result
}

func (s Step) resolveArgs(r *AddressResolver) ([]interface{}, error) {
	args := make([]interface{}, 0, len(s.Args))
	for _, arg := range s.Args {
		v, err := arg.resolve(r, s.Name)
		if err != nil {
			return nil, err
		}

		args = append(args, v)
	}

	return args, nil
}

func (s Step) resolveTarget(r *AddressResolver) (common.Address, error) {
	v, err := s.Target.resolve(r, s.Name)
	if err != nil {
		return common.Address{}, err
	}

	address, ok := v.(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("target of %s is not an address", s.Name)
	}

	return address, nil
}

func (c *CallCondition) check(ctx context.Context, reader ChainReader, abi *sol.Contract, target common.Address) (bool, error) {
	out, err := reader.Call(ctx, abi, target, c.Method, c.Args...)
	if err != nil {
		err = errors.Wrapf(err, "failed to call %s", c.Method)
		return false, err
	}

	return c.Satisfied(out)
}
