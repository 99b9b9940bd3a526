package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/milestono/api/internal/domain/component"
)

// ErrComponentUnavailable is returned by stub implementations installed for components
// that resolved to neither their preferred nor their fallback implementation.
var ErrComponentUnavailable = errors.New("component unavailable")

// ComponentSpec describes how to build one optional component.
// Primary is the preferred implementation. Fallback is optional and yields a degraded one.
// Unavailable must always succeed; it builds the stub installed when both factories fail.
type ComponentSpec[T any] struct {
	Name        string
	Kind        component.Kind
	Primary     func(ctx context.Context) (T, error)
	Fallback    func(ctx context.Context) (T, error)
	Unavailable func(reason string) T
}

// Resolved pairs a component implementation with the record of how it was obtained.
type Resolved[T any] struct {
	Value      T
	Descriptor component.Descriptor
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger *slog.Logger
	Now    func() time.Time
	// OnResolve is called once per Resolve with the final descriptor.
	OnResolve func(component.Descriptor)
}

// Registry records how each optional component resolved at startup.
// Resolve is expected to run before traffic is served; Status and Lookup are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]component.Descriptor
	logger    *slog.Logger
	now       func() time.Time
	onResolve func(component.Descriptor)
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		entries:   make(map[string]component.Descriptor),
		logger:    opts.Logger,
		now:       opts.Now,
		onResolve: opts.OnResolve,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Resolve builds the component described by spec and records its descriptor.
// It never panics or returns an error: failures degrade to Fallback, then Unavailable.
// Resolving a name twice replaces the earlier descriptor.
func Resolve[T any](ctx context.Context, r *Registry, spec ComponentSpec[T]) Resolved[T] {
	logger := r.logger.With("component", spec.Name, "kind", string(spec.Kind))

	value, primaryErr := build(ctx, spec.Primary)
	if primaryErr == nil {
		return record(r, spec, value, component.StateAvailable, "")
	}
	logger.WarnContext(ctx, "component primary implementation unavailable", "error", primaryErr)

	if spec.Fallback != nil {
		fb, fallbackErr := build(ctx, spec.Fallback)
		if fallbackErr == nil {
			return record(r, spec, fb, component.StateFallback, primaryErr.Error())
		}
		logger.ErrorContext(ctx, "component fallback failed", "error", fallbackErr)
		primaryErr = fmt.Errorf("%w; fallback: %w", primaryErr, fallbackErr)
	}

	reason := primaryErr.Error()
	var stub T
	if spec.Unavailable != nil {
		stub = unavailableStub(spec.Unavailable, reason)
	}
	return record(r, spec, stub, component.StateUnavailable, reason)
}

func build[T any](ctx context.Context, factory func(context.Context) (T, error)) (value T, err error) {
	if factory == nil {
		return value, errors.New("no implementation registered")
	}
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			value, err = zero, fmt.Errorf("panic during resolve: %v", rec)
		}
	}()
	return factory(ctx)
}

func unavailableStub[T any](factory func(string) T, reason string) (stub T) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			stub = zero
		}
	}()
	return factory(reason)
}

func (r *Registry) put(d component.Descriptor) {
	r.mu.Lock()
	r.entries[d.Name] = d
	r.mu.Unlock()
	if r.onResolve != nil {
		r.onResolve(d)
	}
}

func record[T any](r *Registry, spec ComponentSpec[T], value T, state component.State, reason string) Resolved[T] {
	d := component.Descriptor{
		Name:       spec.Name,
		Kind:       spec.Kind,
		State:      state,
		Reason:     reason,
		ResolvedAt: r.now().UTC(),
	}
	r.put(d)
	r.logger.Info("component resolved", "component", d.Name, "kind", string(d.Kind), "state", string(d.State))
	return Resolved[T]{Value: value, Descriptor: d}
}

// Status returns every resolved component ordered by name.
func (r *Registry) Status() []component.Descriptor {
	r.mu.RLock()
	out := make([]component.Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the descriptor recorded for name.
func (r *Registry) Lookup(name string) (component.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[name]
	return d, ok
}

// Degraded reports whether any component resolved to something other than Available.
func (r *Registry) Degraded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.entries {
		if d.Degraded() {
			return true
		}
	}
	return false
}

// Healthy reports whether no component resolved to Unavailable. Fallbacks still count as healthy.
func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.entries {
		if d.State == component.StateUnavailable {
			return false
		}
	}
	return true
}
