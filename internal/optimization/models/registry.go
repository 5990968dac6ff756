package models

import (
	"sort"

	"github.com/copyleftdev/lmfit/internal/optimization"
)

var registry = map[string]Shape{}

func init() {
	Register(NewPolynomial("linear", 1))
	Register(NewPolynomial("quadratic", 2))
	Register(Gaussian{})
	Register(ExpDecay{})
}

// Register adds a shape under its name, replacing any previous entry. It is
// not safe to call concurrently with Lookup.
func Register(s Shape) {
	registry[s.Name()] = s
}

// Lookup returns the shape registered under name.
func Lookup(name string) (Shape, error) {
	s, ok := registry[name]
	if !ok {
		return nil, optimization.WrapErrorf(optimization.ErrInput, "unknown model %q", name).
			WithComponent("models").WithOperation("Lookup")
	}
	return s, nil
}

// Names returns the registered shape names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
