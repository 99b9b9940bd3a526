// Package component describes optional startup components and how they resolved.
package component

import "time"

// State is the outcome of resolving a component at startup.
type State string

const (
	StateAvailable   State = "available"
	StateFallback    State = "fallback"
	StateUnavailable State = "unavailable"
)

// Kind groups components for status reporting.
type Kind string

const (
	KindModel  Kind = "model"
	KindRoutes Kind = "routes"
	KindStore  Kind = "store"
	KindAuth   Kind = "auth"
)

// Descriptor is the queryable record of a resolved component.
type Descriptor struct {
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	State      State     `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Degraded reports whether the component is running on anything other than its preferred implementation.
func (d Descriptor) Degraded() bool { return d.State != StateAvailable }
