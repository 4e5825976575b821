package sol

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Libraries is the library linking configuration of a compile pass: declaring source
// unit name -> library name -> deployed address.
type Libraries map[string]map[string]common.Address

func NewLibraries() Libraries {
	return make(Libraries)
}

// Bind sets the address of a single library, leaving every other binding intact.
func (l Libraries) Bind(sourcePath, name string, address common.Address) {
	byName, ok := l[sourcePath]
	if !ok {
		byName = make(map[string]common.Address)
		l[sourcePath] = byName
	}

	byName[name] = address
}

func (l Libraries) Address(sourcePath, name string) (common.Address, bool) {
	address, ok := l[sourcePath][name]
	return address, ok
}

// Sources returns declaring source units in sorted order.
func (l Libraries) Sources() []string {
	sources := make([]string, 0, len(l))
	for sourcePath := range l {
		sources = append(sources, sourcePath)
	}
	sort.Strings(sources)

	return sources
}

func (l Libraries) Clone() Libraries {
	out := make(Libraries, len(l))
	for sourcePath, byName := range l {
		for name, address := range byName {
			out.Bind(sourcePath, name, address)
		}
	}

	return out
}

func (l Libraries) entries() []string {
	entries := make([]string, 0, len(l))
	for _, sourcePath := range l.Sources() {
		names := make([]string, 0, len(l[sourcePath]))
		for name := range l[sourcePath] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			entries = append(entries, sourcePath+":"+name+"="+l[sourcePath][name].Hex())
		}
	}

	return entries
}

// Fingerprint is a stable keccak256 digest of all bindings, empty config included.
func (l Libraries) Fingerprint() string {
	return crypto.Keccak256Hash([]byte(strings.Join(l.entries(), "\n"))).Hex()
}

func (l Libraries) String() string {
	return strings.Join(l.entries(), ",")
}
