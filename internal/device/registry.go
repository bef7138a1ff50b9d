package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"spark/internal/fault"
)

// Registry holds the drivers a runtime may select from.
type Registry struct {
	mu      sync.Mutex
	drivers map[string]Driver
}

func NewRegistry(drivers ...Driver) *Registry {
	r := &Registry{drivers: make(map[string]Driver, len(drivers))}
	for _, d := range drivers {
		r.Register(d)
	}
	return r
}

// Register adds d, replacing any driver with the same name.
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.Name()] = d
}

func (r *Registry) Lookup(name string) (Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[name]
	return d, ok
}

// Names returns the registered driver names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Selector narrows device selection. Zero values match anything.
type Selector struct {
	Driver   string
	Kind     Kind
	Platform string
	Index    int
}

// Select resolves sel to a single device. With no driver named, the first
// driver in preference order that lists a matching device wins.
func (r *Registry) Select(ctx context.Context, sel Selector, preference []string) (Driver, Info, error) {
	candidates := preference
	if sel.Driver != "" {
		candidates = []string{sel.Driver}
	}
	var lastErr error
	for _, name := range candidates {
		d, ok := r.Lookup(name)
		if !ok {
			lastErr = fmt.Errorf("unknown driver %q (have %v)", name, r.Names())
			continue
		}
		infos, err := d.Devices(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		var matched []Info
		for _, info := range infos {
			if sel.Kind != KindDefault && info.Kind != sel.Kind {
				continue
			}
			if sel.Platform != "" && info.Platform != sel.Platform {
				continue
			}
			matched = append(matched, info)
		}
		if sel.Index < 0 || sel.Index >= len(matched) {
			lastErr = fmt.Errorf("driver %s: no %s device at index %d (%d matching)", name, sel.Kind, sel.Index, len(matched))
			continue
		}
		return d, matched[sel.Index], nil
	}
	if lastErr == nil || errors.Is(lastErr, fault.ErrNoPlatform) {
		return nil, Info{}, fault.Wrap(fault.KindDevice, "select device", fault.ErrNoPlatform)
	}
	return nil, Info{}, fault.Wrap(fault.KindDevice, "select device", lastErr)
}
