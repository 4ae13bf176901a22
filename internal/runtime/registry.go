package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options carries the settings every registered runtime is built with.
type Options struct {
	StopTimeout   time.Duration
	FailurePolicy string
	Logger        logrus.FieldLogger
}

// Factory constructs a runtime instance.
type Factory func(Options) (Runtime, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
)

// Register associates the provided factory with the runtime name. A later
// registration of the same name replaces the earlier one.
func Register(name string, factory Factory) {
	if name == "" {
		panic("runtime.Register: name must not be empty")
	}
	if factory == nil {
		panic("runtime.Register: factory must not be nil")
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// NewRegistry constructs a registry containing every registered runtime,
// each built with opts.
func NewRegistry(opts Options) (Registry, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg := make(Registry, len(factories))
	var errs []error
	for name, factory := range factories {
		rt, err := factory(opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("runtime %s: %w", name, err))
			continue
		}
		reg[name] = rt
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}

// Lookup returns the runtime registered under name.
func (r Registry) Lookup(name string) (Runtime, error) {
	rt, ok := r[name]
	if !ok || rt == nil {
		return nil, fmt.Errorf("unknown runtime %q (available: %v)", name, r.Names())
	}
	return rt, nil
}

// Names returns the sorted runtime identifiers in the registry.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
