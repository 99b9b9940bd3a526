package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/milestono/api/internal/core"
	"github.com/milestono/api/internal/domain/model"
)

var _ core.SchemaProbe = (*SchemaProbe)(nil)

// SchemaProbe checks the connected database for model tables.
type SchemaProbe struct {
	DB *sql.DB
}

// NewSchemaProbe creates a SchemaProbe.
func NewSchemaProbe(db *sql.DB) *SchemaProbe {
	return &SchemaProbe{DB: db}
}

// TableExists reports whether table is visible on the current search_path.
func (p *SchemaProbe) TableExists(ctx context.Context, table string) (bool, error) {
	if p == nil || p.DB == nil {
		return false, errors.New("schema probe requires a database")
	}
	if !model.ValidCollectionName(table) {
		return false, fmt.Errorf("invalid table name %q", table)
	}
	var exists bool
	if err := p.DB.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	return exists, nil
}
