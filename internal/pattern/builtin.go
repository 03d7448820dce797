package pattern

import (
	"fmt"
	"sort"
	"sync"
)

// BuiltinClasses groups descriptor markers printed by the capture tool.
var BuiltinClasses = map[string][]string{
	// Kernel-internal channels without a stable identity that could link
	// events across processes. Excluded from the causal graph by default.
	"kernel-channel": {
		"<unix>",
		"<timerfd>",
		"<inotify>",
		"<pipe>",
		"<netlink>",
	},

	"ipc": {
		"<unix>",
		"<pipe>",
	},

	"event-fd": {
		"<timerfd>",
		"<inotify>",
		"<eventfd>",
		"<signalfd>",
		"<event>",
	},

	"file": {
		"<f>",
		"<d>",
	},

	"inet": {
		"<4t>",
		"<4u>",
		"<6t>",
		"<6u>",
	},
}

// Registry holds built-in and configured classes.
type Registry struct {
	mu      sync.RWMutex
	classes map[string][]string
}

// NewRegistry returns a registry seeded with BuiltinClasses.
func NewRegistry() *Registry {
	r := &Registry{classes: make(map[string][]string, len(BuiltinClasses))}
	for name, members := range BuiltinClasses {
		r.classes[name] = append([]string(nil), members...)
	}
	return r
}

// Get returns a copy of the class members.
func (r *Registry) Get(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.classes[name]
	if !ok {
		return nil, fmt.Errorf("unknown class: @%s", name)
	}
	return append([]string(nil), members...), nil
}

// Set adds or replaces a class.
func (r *Registry) Set(name string, members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[name] = append([]string(nil), members...)
}

// Has reports whether a class exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[name]
	return ok
}

// List returns all class names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
