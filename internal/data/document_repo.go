package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/milestono/api/internal/core"
	"github.com/milestono/api/internal/domain/model"
	apperrors "github.com/milestono/api/internal/errors"
)

// DocumentsTable holds every schema-less collection.
const DocumentsTable = "documents"

var _ core.RecordRepository = (*DocumentRepo)(nil)

// DocumentRepo is the schema-less record store. Every model without a dedicated
// table shares the documents table, partitioned by collection.
type DocumentRepo struct {
	DB         *sql.DB
	collection string
}

// NewDocumentRepo creates a DocumentRepo bound to one collection.
func NewDocumentRepo(db *sql.DB, collection string) (*DocumentRepo, error) {
	if db == nil {
		return nil, errors.New("document store requires a database")
	}
	if !model.ValidCollectionName(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	return &DocumentRepo{DB: db, collection: collection}, nil
}

// Create stores doc as-is. Keys are not validated against any schema.
func (r *DocumentRepo) Create(ctx context.Context, doc map[string]any) (*model.Record, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Validationf("document is not serializable: %v", err)
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO documents (collection, data)
		VALUES ($1, $2::jsonb)
		RETURNING id, collection, data, created_at, updated_at`,
		r.collection, string(payload))
	rec, err := scanDocument(row)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("insert document: %w", err))
	}
	return rec, nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordIDFormat
	}
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, collection, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2`,
		r.collection, id)
	rec, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("get document: %w", err))
	}
	return rec, nil
}

func (r *DocumentRepo) List(ctx context.Context, opts model.RecordListOptions) ([]*model.Record, error) {
	opts = opts.Normalize()
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, collection, data, created_at, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		r.collection, opts.Limit, opts.Offset)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list documents: %w", err))
	}
	defer rows.Close()

	out := make([]*model.Record, 0, opts.Limit)
	for rows.Next() {
		rec, scanErr := scanDocument(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan document: %w", scanErr)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("iterate documents: %w", err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Record, error) {
	var (
		rec model.Record
		raw []byte
	)
	if err := row.Scan(&rec.ID, &rec.Collection, &raw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Data); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", rec.ID, err)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return &rec, nil
}
