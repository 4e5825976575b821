package sol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/itchyny/gojq"
	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
	log "github.com/xlab/suplog"
)

type EVMVersion string

const (
	EVMVersionTangerineWhistle EVMVersion = "tangerineWhistle"
	EVMVersionSpuriousDragon   EVMVersion = "spuriousDragon"
	EVMVersionByzantium        EVMVersion = "byzantium"
	EVMVersionConstantinople   EVMVersion = "constantinople"
	EVMVersionPetersburg       EVMVersion = "petersburg"
	EVMVersionIstanbul         EVMVersion = "istanbul"
	EVMVersionBerlin           EVMVersion = "berlin"
)

type ContractContent struct {
	Keccak256 string `json:"keccak256"`
	Content   string `json:"content"`
}

type StandardJSONInput struct {
	Language string                     `json:"language"`
	Sources  map[string]ContractContent `json:"sources"`
	Settings struct {
		Remappings []string `json:"remappings"`

		Optimizer struct {
			Enabled bool `json:"enabled"`
			Runs    int  `json:"runs"`
		} `json:"optimizer"`

		EvmVersion      EVMVersion                     `json:"evmVersion,omitempty"`
		OutputSelection map[string]map[string][]string `json:"outputSelection"`
	} `json:"settings"`
}

var outputSelection = map[string]map[string][]string{
	"*": {
		"*": {"abi", "evm.bytecode.object", "evm.bytecode.linkReferences"},
	},
}

// NewStandardJSONInput reads every source relative to basePath and renders the solc
// standard JSON input, with library addresses placed under settings.libraries.
func NewStandardJSONInput(basePath string, sources []string, settings Settings) ([]byte, error) {
	if len(sources) == 0 {
		return nil, errors.New("solc: no sources to compile")
	}

	input := StandardJSONInput{
		Language: "Solidity",
		Sources:  make(map[string]ContractContent, len(sources)),
	}

	input.Settings.Remappings = make([]string, 0, len(settings.Remappings))
	input.Settings.Remappings = append(input.Settings.Remappings, settings.Remappings...)
	input.Settings.Optimizer.Enabled = settings.OptimizerRuns > 0
	input.Settings.Optimizer.Runs = settings.OptimizerRuns
	input.Settings.EvmVersion = settings.EVMVersion
	input.Settings.OutputSelection = outputSelection

	for _, srcPath := range sources {
		solContent, err := os.ReadFile(filepath.Join(basePath, srcPath))
		if err != nil {
			err = errors.Wrapf(err, "failed to collect Solidity file %s", srcPath)
			return nil, err
		}

		input.Sources[filepath.ToSlash(srcPath)] = ContractContent{
			Keccak256: crypto.Keccak256Hash(solContent).Hex(),
			Content:   string(solContent),
		}
	}

	out, err := json.Marshal(input)
	if err != nil {
		err = errors.Wrap(err, "failed to marshal standard JSON input")
		return nil, err
	}

	for _, sourcePath := range settings.Libraries.Sources() {
		for name, address := range settings.Libraries[sourcePath] {
			path := fmt.Sprintf("settings.libraries.%s.%s", escapeJSONPath(sourcePath), escapeJSONPath(name))
			out, err = sjson.SetBytes(out, path, address.Hex())
			if err != nil {
				err = errors.Wrapf(err, "failed to set library %s:%s in standard JSON input", sourcePath, name)
				return nil, err
			}
		}
	}

	return out, nil
}

var jsonPathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)

func escapeJSONPath(key string) string {
	return jsonPathEscaper.Replace(key)
}

var (
	outputErrorMessages, _ = gojq.Parse(`.errors[]? | select(.severity == "error") | .formattedMessage // .message`)
	outputWarnings, _      = gojq.Parse(`.errors[]? | select(.severity != "error") | .formattedMessage // .message`)
	outputSourcePaths, _   = gojq.Parse(`.sources // {} | keys[]`)
	outputContracts, _     = gojq.Parse(`.contracts // {} | to_entries[] | .key as $source | .value | to_entries[] | {
		id: "\($source):\(.key)",
		abi: .value.abi,
		bin: .value.evm.bytecode.object,
		links: [(.value.evm.bytecode.linkReferences // {}) | to_entries[] | .key as $file | .value | keys[] | "\($file):\(.)"]
	}`)
)

// ParseStandardJSONOutput extracts compiled contracts from solc standard JSON output.
// Contracts without bytecode (interfaces, abstract contracts) are only kept when no
// other contract of the same name carries bytecode.
func ParseStandardJSONOutput(out []byte) (map[string]*Contract, error) {
	var doc interface{}
	if err := json.Unmarshal(out, &doc); err != nil {
		err = fmt.Errorf("solc: failed to unmarshal Solc output: %v", err)
		return nil, err
	}

	messages, err := queryStrings(outputErrorMessages, doc)
	if err != nil {
		return nil, err
	} else if len(messages) > 0 {
		err := errors.Errorf("solc: compilation failed:\n%s", strings.Join(messages, "\n"))
		return nil, err
	}

	if warnings, err := queryStrings(outputWarnings, doc); err == nil {
		for _, warning := range warnings {
			log.Debugln("solc:", warning)
		}
	}

	allPaths, err := queryStrings(outputSourcePaths, doc)
	if err != nil {
		return nil, err
	} else if len(allPaths) == 0 {
		err := errors.New("solc: no source paths collected")
		return nil, err
	}

	contracts := make(map[string]*Contract)

	iter := outputContracts.Run(doc)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		} else if err, ok := v.(error); ok {
			err = errors.Wrap(err, "solc: failed to query compiled contracts")
			return nil, err
		}

		entry, ok := v.(map[string]interface{})
		if !ok {
			continue
		}

		id, _ := entry["id"].(string)
		name, sourcePath, err := idToNameAndSourcePath(id)
		if err != nil {
			return nil, err
		}

		abiJSON, err := json.Marshal(entry["abi"])
		if err != nil {
			err = errors.Wrapf(err, "solc: failed to marshal ABI of %s", id)
			return nil, err
		}

		bin, _ := entry["bin"].(string)

		var links []string
		if refs, ok := entry["links"].([]interface{}); ok {
			for _, ref := range refs {
				if s, ok := ref.(string); ok {
					links = append(links, s)
				}
			}
		}
		sort.Strings(links)

		if existing, ok := contracts[name]; ok && len(existing.Bin) > 0 {
			if len(bin) > 0 {
				log.WithFields(log.Fields{
					"contract": name,
					"kept":     existing.SourcePath,
					"skipped":  sourcePath,
				}).Warningln("duplicate contract name in compiled sources")
			}

			continue
		}

		contracts[name] = &Contract{
			Name:           name,
			SourcePath:     sourcePath,
			AllPaths:       allPaths,
			LinkReferences: links,

			ABI: abiJSON,
			Bin: bin,
		}
	}

	if len(contracts) == 0 {
		err := errors.New("solc: no contracts compiled")
		return nil, err
	}

	return contracts, nil
}

func queryStrings(query *gojq.Query, doc interface{}) ([]string, error) {
	var out []string

	iter := query.Run(doc)
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		} else if err, ok := v.(error); ok {
			err = errors.Wrap(err, "solc: failed to query compiler output")
			return nil, err
		}

		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
}
