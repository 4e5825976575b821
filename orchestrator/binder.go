package orchestrator

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/v3-periphery-deploy/sol"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found in compiled sources")
	ErrUnlinkedArtifact = errors.New("artifact has unresolved library references")
)

// LibraryBinder owns the library linking configuration and the artifacts compiled
// against it. Artifacts are only ever read from the latest compile pass.
type LibraryBinder struct {
	compiler  ArtifactCompiler
	libs      sol.Libraries
	artifacts map[string]*sol.Contract
}

func NewLibraryBinder(compiler ArtifactCompiler) *LibraryBinder {
	return &LibraryBinder{
		compiler: compiler,
		libs:     sol.NewLibraries(),
	}
}

// BindLibrary links libraryName declared in librarySourcePath to address, drops every
// artifact compiled so far and synchronously recompiles.
func (b *LibraryBinder) BindLibrary(
	ctx context.Context,
	librarySourcePath string,
	libraryName string,
	address common.Address,
) error {
	b.libs.Bind(librarySourcePath, libraryName, address)
	b.artifacts = nil

	log.WithFields(log.Fields{
		"source":  librarySourcePath,
		"library": libraryName,
		"address": address.Hex(),
	}).Infoln("bound library address, recompiling")

	return b.compile(ctx)
}

// Libraries returns a copy of the current linking configuration.
func (b *LibraryBinder) Libraries() sol.Libraries {
	return b.libs.Clone()
}

// Artifact returns the named artifact of the latest compile pass, compiling first if
// nothing has been compiled yet.
func (b *LibraryBinder) Artifact(ctx context.Context, name string) (*sol.Contract, error) {
	if b.artifacts == nil {
		if err := b.compile(ctx); err != nil {
			return nil, err
		}
	}

	contract, ok := b.artifacts[name]
	if !ok {
		return nil, &RecompileError{Artifact: name, Err: ErrArtifactNotFound}
	} else if !contract.Linked() {
		err := errors.Wrap(ErrUnlinkedArtifact, strings.Join(contract.LinkReferences, ", "))
		return nil, &RecompileError{Artifact: name, Err: err}
	}

	return contract, nil
}

func (b *LibraryBinder) compile(ctx context.Context) error {
	artifacts, err := b.compiler.Compile(ctx, b.libs.Clone())
	if err != nil {
		return &RecompileError{Err: err}
	} else if len(artifacts) == 0 {
		return &RecompileError{Err: errors.New("compiler produced no artifacts")}
	}

	b.artifacts = artifacts
	return nil
}
