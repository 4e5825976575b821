package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	log "github.com/xlab/suplog"
)

var (
	ErrNoNetworkName    = errors.New("network name is empty")
	ErrInvalidManifest  = errors.New("manifest is not a JSON object")
	ErrUnexpectedKey    = errors.New("unexpected manifest key")
	ErrMalformedAddress = errors.New("malformed address")
	ErrUnbound          = errors.New("no address bound")
)

// Manifest maps manifest keys to deployed addresses.
type Manifest map[string]common.Address

// Keys returns the manifest keys sorted lexicographically.
func (m Manifest) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}

func ManifestPath(dir, network string) string {
	return filepath.Join(dir, fmt.Sprintf("deployment.%s.json", network))
}

type ManifestWriter struct {
	dir  string
	keys []ManifestKey
}

func NewManifestWriter(dir string, keys []ManifestKey) *ManifestWriter {
	return &ManifestWriter{
		dir:  dir,
		keys: keys,
	}
}

// Write persists every expected key bound in resolver to the manifest of network,
// replacing any previous one. Nothing is written unless every key is bound.
func (w *ManifestWriter) Write(network string, resolver *AddressResolver) (string, error) {
	if len(network) == 0 {
		return "", ErrNoNetworkName
	}

	var (
		missing []string
		merr    error
	)

	json := []byte("{}")
	for _, key := range w.keys {
		address, err := resolver.Resolve(key.Step)
		if err != nil {
			missing = append(missing, key.Key)
			merr = multierror.Append(merr, errors.Wrapf(ErrUnbound, "%s (step %s)", key.Key, key.Step))
			continue
		}

		if json, err = sjson.SetBytes(json, key.Key, address.Hex()); err != nil {
			err = errors.Wrapf(err, "failed to set manifest key %s", key.Key)
			return "", err
		}
	}

	if len(missing) > 0 {
		return "", &IncompleteManifestError{
			Network: network,
			Missing: missing,
			Err:     merr,
		}
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		err = errors.Wrap(err, "failed to create deployments dir")
		return "", err
	}

	path := ManifestPath(w.dir, network)
	if err := writeFileAtomic(path, pretty.Pretty(json)); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"network": network,
		"path":    path,
		"keys":    len(w.keys),
	}).Infoln("wrote deployment manifest")

	return path, nil
}

// writeFileAtomic never leaves a partially written file at path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		err = errors.Wrap(err, "failed to create temp manifest")
		return err
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		err = errors.Wrap(err, "failed to write temp manifest")
		return err
	} else if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		err = errors.Wrap(err, "failed to sync temp manifest")
		return err
	} else if err := tmp.Close(); err != nil {
		err = errors.Wrap(err, "failed to close temp manifest")
		return err
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		err = errors.Wrap(err, "failed to chmod temp manifest")
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		err = errors.Wrap(err, "failed to move manifest in place")
		return err
	}

	return nil
}

// ReadManifest loads a periphery manifest, requiring exactly the expected keys each
// holding a checksummed address.
func ReadManifest(path string) (Manifest, error) {
	return readManifest(path, PeripheryManifestKeys())
}

func readManifest(path string, keys []ManifestKey) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrap(err, "failed to read manifest")
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidManifest
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, ErrInvalidManifest
	}

	expected := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		expected[key.Key] = struct{}{}
	}

	var merr error
	manifest := make(Manifest, len(keys))

	root.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if _, ok := expected[key]; !ok {
			merr = multierror.Append(merr, errors.Wrap(ErrUnexpectedKey, key))
			return true
		}

		value := v.String()
		if v.Type != gjson.String || !common.IsHexAddress(value) {
			merr = multierror.Append(merr, errors.Wrapf(ErrMalformedAddress, "%s: %s", key, v.Raw))
			return true
		}

		address := common.HexToAddress(value)
		if address.Hex() != value {
			merr = multierror.Append(merr, errors.Wrapf(ErrMalformedAddress, "%s: %s is not checksummed", key, value))
			return true
		}

		manifest[key] = address
		return true
	})

	var missing []string
	for _, key := range keys {
		if _, ok := manifest[key.Key]; !ok {
			missing = append(missing, key.Key)
		}
	}

	if merr != nil {
		return nil, merr
	} else if len(missing) > 0 {
		return nil, &IncompleteManifestError{
			Network: filepath.Base(path),
			Missing: missing,
		}
	}

	return manifest, nil
}
