// Package sol provides a convenient interface for calling the 'solc' Solidity Compiler from Go.
package sol

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"
)

type Contract struct {
	Name            string
	SourcePath      string
	AllPaths        []string
	CompilerVersion string
	Address         common.Address

	// LinkReferences lists "source:Library" pairs still unresolved in Bin.
	LinkReferences []string

	ABI []byte
	Bin string
}

// Linked reports whether the bytecode is free of library placeholders.
func (c *Contract) Linked() bool {
	return len(c.LinkReferences) == 0
}

// Settings holds compiler settings shared by every source of a single compile pass.
type Settings struct {
	OptimizerRuns int
	EVMVersion    EVMVersion
	Remappings    []string
	Libraries     Libraries
}

type Compiler interface {
	SetAllowPaths(paths []string) Compiler
	Version() string
	Compile(basePath string, sources []string, settings Settings) (map[string]*Contract, error)
}

func NewSolCompiler(solcPath string) (Compiler, error) {
	s := &solCompiler{
		solcPath: solcPath,
	}
	if err := s.verify(); err != nil {
		return nil, err
	}
	return s, nil
}

type solCompiler struct {
	solcPath   string
	version    string
	allowPaths []string
}

func (s *solCompiler) verify() error {
	out, err := exec.Command(s.solcPath, "--version").CombinedOutput()
	if err != nil {
		err = fmt.Errorf("solc verify: failed to exec solc: %v", err)
		return err
	}
	hasPrefix := strings.HasPrefix(string(out), "solc, the solidity compiler")
	if !hasPrefix {
		err := fmt.Errorf("solc verify: executable output was unexpected (output: %s)", out)
		return err
	}

	s.version = parseVersion(out)
	return nil
}

func parseVersion(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "Version:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Version:"))
		}
	}

	return ""
}

func (s *solCompiler) SetAllowPaths(paths []string) Compiler {
	s.allowPaths = paths
	return s
}

func (s *solCompiler) Version() string {
	return s.version
}

// Compile runs solc in standard JSON mode from basePath. Sources are source unit
// names relative to basePath; imports are resolved by solc from the filesystem.
func (s *solCompiler) Compile(basePath string, sources []string, settings Settings) (map[string]*Contract, error) {
	input, err := NewStandardJSONInput(basePath, sources, settings)
	if err != nil {
		return nil, err
	}

	args := []string{s.solcPath, "--standard-json"}
	if len(s.allowPaths) > 0 {
		args = append(args, "--allow-paths", strings.Join(s.allowPaths, ","))
	}

	cmd := exec.Cmd{
		Path:   s.solcPath,
		Args:   args,
		Dir:    basePath,
		Stdin:  bytes.NewReader(input),
		Stderr: os.Stderr,
	}

	log.WithField("libraries", settings.Libraries.String()).Debugln("Running solc compiler:", cmd.String())

	out, err := cmd.Output()
	if err != nil {
		err = fmt.Errorf("solc: failed to compile contracts: %v", err)
		return nil, err
	}

	contracts, err := ParseStandardJSONOutput(out)
	if err != nil {
		return nil, err
	}

	for _, c := range contracts {
		c.CompilerVersion = s.version
	}

	return contracts, nil
}

func idToNameAndSourcePath(id string) (name, sourcePath string, err error) {
	idx := strings.LastIndex(id, ":")
	if idx < 0 {
		err = errors.Errorf("solc: found an unnamed contract in output: %s", id)
		return
	}

	return id[idx+1:], id[:idx], nil
}

func WhichSolc() (string, error) {
	out, err := exec.Command("which", "solc").Output()
	if err != nil {
		return "", errors.New("solc executable file not found in $PATH")
	}
	return string(bytes.TrimSpace(out)), nil
}
