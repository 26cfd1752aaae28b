package modules

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

type entry struct {
	module      Module
	initialized bool
	failed      error
}

// Registry manages registered modules and their initialization state.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string
	resolving bool
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a module. Duplicate types are rejected immediately.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrTypeRequired)
	}
	typ := strings.TrimSpace(m.Type())
	if typ == "" {
		return ErrTypeRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolving {
		return fmt.Errorf("%w: cannot register %s", ErrResolving, typ)
	}
	if _, exists := r.entries[typ]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, typ)
	}
	r.entries[typ] = &entry{module: m}
	r.order = append(r.order, typ)
	return nil
}

// MustRegister is like Register but panics on error. Use it while
// assembling the server, where a duplicate is a programming bug.
func (r *Registry) MustRegister(m Module) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Has reports whether a module of the given type is registered.
func (r *Registry) Has(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[typ]
	return ok
}

// Module returns the registered module of the given type.
func (r *Registry) Module(typ string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typ]
	if !ok {
		return nil, false
	}
	return e.module, true
}

// Initialized reports whether the module of the given type was initialized.
func (r *Registry) Initialized(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typ]
	return ok && e.initialized
}

// Types returns registered module types in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Host is handed to modules while they initialize.
type Host struct {
	registry *Registry
	// Services carries process-wide collaborators (router, config, ...).
	Services any
}

// Module returns an initialized module by type.
func (h *Host) Module(typ string) (Module, error) {
	e, ok := h.registry.entries[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered", ErrNotInitialized, typ)
	}
	if !e.initialized {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, typ)
	}
	return e.module, nil
}

// Get returns the initialized module of the given type as T.
func Get[T Module](h *Host, typ string) (T, bool) {
	var zero T
	m, err := h.Module(typ)
	if err != nil {
		return zero, false
	}
	t, ok := m.(T)
	return t, ok
}

// Result describes a finished resolution pass.
type Result struct {
	// Order lists module types in the order they were initialized.
	Order []string
	// Uninitialized lists module types that could not be initialized,
	// either because of a required cycle or a missing required dependency.
	Uninitialized []string
	// Failed maps module types to the error their Initialize returned.
	Failed map[string]error
}

// OK reports whether every module was initialized.
func (res Result) OK() bool {
	return len(res.Uninitialized) == 0 && len(res.Failed) == 0
}

// Resolve initializes every registered module whose dependencies can be
// satisfied. Optional dependencies are honored while they make progress and
// ignored once they stop doing so. Resolve never fails; callers inspect the
// result to decide whether leftovers are fatal.
func (r *Registry) Resolve(services any) Result {
	r.mu.Lock()
	r.resolving = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.resolving = false
		r.mu.Unlock()
	}()

	host := &Host{registry: r, Services: services}
	res := Result{Failed: make(map[string]error)}

	strict := true
	for {
		progressed := false
		for _, typ := range r.order {
			e := r.entries[typ]
			if e.initialized || e.failed != nil {
				continue
			}
			if !r.ready(e.module, strict) {
				continue
			}
			progressed = true
			if err := e.module.Initialize(host); err != nil {
				e.failed = err
				res.Failed[typ] = err
				log.Printf("modules: %s failed to initialize: %v", typ, err)
				continue
			}
			e.initialized = true
			res.Order = append(res.Order, typ)
		}
		if progressed {
			continue
		}
		if strict {
			strict = false
			continue
		}
		break
	}

	for _, typ := range r.order {
		e := r.entries[typ]
		if !e.initialized && e.failed == nil {
			res.Uninitialized = append(res.Uninitialized, typ)
		}
	}
	return res
}

func (r *Registry) ready(m Module, strict bool) bool {
	for _, dep := range m.Dependencies() {
		e, ok := r.entries[dep]
		if !ok || !e.initialized {
			return false
		}
	}
	if !strict {
		return true
	}
	for _, dep := range m.OptionalDependencies() {
		e, ok := r.entries[dep]
		if ok && !e.initialized {
			return false
		}
	}
	return true
}
