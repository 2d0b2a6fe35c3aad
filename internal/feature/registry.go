package feature

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"tactix/internal/market"
)

// ErrNotFound marks a lookup for an unregistered computation. Callers must
// treat it as a fall-back-or-skip signal, never a fatal condition.
var ErrNotFound = errors.New("feature not registered")

// Input carries everything a registered computation may consume. Candles
// are already resident; computations never block on I/O.
type Input struct {
	Symbol    string
	Timeframe string
	Candles   []market.Candle
	Bundle    *Bundle
	Params    map[string]any
}

// Output is the uniform result shape of a registered computation.
type Output struct {
	Value   Value
	Series  []float64
	Bias    string
	Reasons []string
}

// ComputeFunc is a registered indicator/pattern/signal computation.
type ComputeFunc func(in Input) (Output, error)

// Provider registers a module's computations into the registry. Modules
// expose an explicit provider instead of being discovered by scanning.
type Provider func(r *Registry)

// Conflict records a duplicate registration; first registration wins.
type Conflict struct {
	Name   string
	Kept   string
	Losing string
}

type entry struct {
	source string
	fn     ComputeFunc
}

// Registry maps normalized names to computations. Build runs the providers
// once per process lifetime; after that the map is effectively immutable
// except under an explicit forced refresh.
type Registry struct {
	mu        sync.RWMutex
	built     bool
	providers []Provider
	entries   map[string]entry
	conflicts []Conflict
}

func NewRegistry(providers ...Provider) *Registry {
	return &Registry{
		providers: providers,
		entries:   make(map[string]entry),
	}
}

// Register binds a name to a computation. Called by providers during Build;
// duplicate normalized names keep the first registration and record the
// conflict, this never fails.
func (r *Registry) Register(name, source string, fn ComputeFunc) {
	key := Normalize(name)
	if key == "" || fn == nil {
		return
	}
	if existing, ok := r.entries[key]; ok {
		r.conflicts = append(r.conflicts, Conflict{Name: key, Kept: existing.source, Losing: source})
		return
	}
	r.entries[key] = entry{source: source, fn: fn}
}

// Build runs all providers. Repeated calls without force are no-ops;
// force rebuilds from scratch and must be serialized by the caller
// against concurrent lookups.
func (r *Registry) Build(force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built && !force {
		return
	}
	r.entries = make(map[string]entry)
	r.conflicts = nil
	for _, p := range r.providers {
		if p != nil {
			p(r)
		}
	}
	r.built = true
}

// Get resolves a computation by normalized name.
func (r *Registry) Get(name string) (ComputeFunc, error) {
	key := Normalize(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return e.fn, nil
}

// Names returns the stable sorted set of registered names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Conflicts returns the duplicate registrations seen during the last Build.
func (r *Registry) Conflicts() []Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Conflict(nil), r.conflicts...)
}
