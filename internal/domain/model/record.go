//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"regexp"
	"strings"
	"time"
)

// maxRecordListLimit caps page size for record listings.
const maxRecordListLimit = 200

// collectionNamePattern restricts model/collection names to safe identifiers.
var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Record is the storage-neutral shape every model store returns.
// Data holds the model fields; schema-backed stores populate it from typed columns.
type Record struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// RecordListOptions controls paging for record listings.
type RecordListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps paging values to supported bounds.
func (o RecordListOptions) Normalize() RecordListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > maxRecordListLimit {
		o.Limit = maxRecordListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// ModelNameFromRoute maps a route group name ("verified-agents") to its model name ("verified_agents").
func ModelNameFromRoute(route string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(route)), "-", "_")
}

// ValidCollectionName reports whether name can be used as a model or collection key.
func ValidCollectionName(name string) bool {
	return collectionNamePattern.MatchString(name)
}
