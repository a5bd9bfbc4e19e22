package compute

import (
	"fmt"
	"sort"

	"github.com/san-kum/banksim/internal/dynamo"
)

// Backend evaluates the drift and diffusion terms of one step.
type Backend interface {
	Name() string
	Evaluate(drift, diffusion dynamo.Field, x dynamo.State) (b, s dynamo.State, err error)
}

var backends = map[string]func() Backend{
	"serial":     func() Backend { return NewSerial() },
	"concurrent": func() Backend { return NewConcurrent() },
}

// Lookup returns a fresh backend by name.
func Lookup(name string) (Backend, error) {
	fn, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s (available: %v)", name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func evalField(name string, f dynamo.Field, x dynamo.State) (dynamo.State, error) {
	v, err := f.Eval(x)
	if err != nil {
		return nil, &dynamo.UserFunctionError{Func: name, Err: err}
	}
	return v, nil
}
