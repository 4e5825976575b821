package orchestrator

import (
	"github.com/ethereum/go-ethereum/common"
)

// AddressBinding is a logical contract name bound to its deployed address.
type AddressBinding struct {
	Name    string
	Address common.Address
}

// AddressResolver holds the addresses produced by the current run. It lives as long
// as the run does and bindings are never removed or replaced.
type AddressResolver struct {
	bindings []AddressBinding
	byName   map[string]int
}

func NewAddressResolver() *AddressResolver {
	return &AddressResolver{
		byName: make(map[string]int),
	}
}

func (r *AddressResolver) Record(name string, address common.Address) error {
	if idx, ok := r.byName[name]; ok {
		return &DuplicateBindingError{
			Name:     name,
			Existing: r.bindings[idx].Address,
		}
	}

	r.byName[name] = len(r.bindings)
	r.bindings = append(r.bindings, AddressBinding{
		Name:    name,
		Address: address,
	})

	return nil
}

func (r *AddressResolver) Resolve(name string) (common.Address, error) {
	idx, ok := r.byName[name]
	if !ok {
		return common.Address{}, &UnknownReferenceError{Name: name}
	}

	return r.bindings[idx].Address, nil
}

// Bindings returns a copy of all bindings in the order they were recorded.
func (r *AddressResolver) Bindings() []AddressBinding {
	return append([]AddressBinding{}, r.bindings...)
}

func (r *AddressResolver) Len() int {
	return len(r.bindings)
}
