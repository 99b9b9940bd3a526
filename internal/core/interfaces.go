// Package core holds the component registry and the repository contracts the service layer depends on.
package core

import (
	"context"

	"github.com/milestono/api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces, not on concrete data types.

// RecordRepository stores documents for a single model.
type RecordRepository interface {
	Create(ctx context.Context, doc map[string]any) (*model.Record, error)
	GetByID(ctx context.Context, id string) (*model.Record, error)
	List(ctx context.Context, opts model.RecordListOptions) ([]*model.Record, error)
}

// SchemaProbe reports whether a dedicated table exists for a model.
type SchemaProbe interface {
	TableExists(ctx context.Context, table string) (bool, error)
}

// UnavailableRecords is the RecordRepository installed when no store could be built.
// Every call returns ErrComponentUnavailable.
type UnavailableRecords struct {
	Model  string
	Reason string
}

func (u UnavailableRecords) Create(context.Context, map[string]any) (*model.Record, error) {
	return nil, ErrComponentUnavailable
}

func (u UnavailableRecords) GetByID(context.Context, string) (*model.Record, error) {
	return nil, ErrComponentUnavailable
}

func (u UnavailableRecords) List(context.Context, model.RecordListOptions) ([]*model.Record, error) {
	return nil, ErrComponentUnavailable
}
