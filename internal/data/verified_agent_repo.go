package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/milestono/api/internal/core"
	"github.com/milestono/api/internal/data/pgxutil"
	"github.com/milestono/api/internal/domain/model"
	apperrors "github.com/milestono/api/internal/errors"
)

var _ core.RecordRepository = (*VerifiedAgentRepo)(nil)

const verifiedAgentColumns = `id, name, email, status, verification_date, documents, created_at, updated_at`

// VerifiedAgentRepo is the schema-backed store for the verified_agents model.
type VerifiedAgentRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewVerifiedAgentRepo creates a new VerifiedAgentRepo with the real clock.
func NewVerifiedAgentRepo(db *sql.DB) *VerifiedAgentRepo {
	return &VerifiedAgentRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewVerifiedAgentRepoWithTimeProvider creates a VerifiedAgentRepo with a custom clock (useful for tests).
func NewVerifiedAgentRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *VerifiedAgentRepo {
	return &VerifiedAgentRepo{DB: db, timeProvider: tp}
}

// CreateAgent validates and inserts a verified agent.
func (r *VerifiedAgentRepo) CreateAgent(ctx context.Context, req *model.CreateVerifiedAgentRequest) (*model.VerifiedAgent, error) {
	if req == nil {
		return nil, errors.New("create verified agent request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	now := r.timeProvider.Now().UTC()
	var out model.VerifiedAgent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO verified_agents (name, email, status, verification_date, documents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			RETURNING `+verifiedAgentColumns,
			req.Name, req.Email, string(req.Status), req.VerificationDate, req.Documents, now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.VerifiedAgent])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("insert verified agent: %w", err))
	}
	return &out, nil
}

// GetAgent returns one agent by id.
func (r *VerifiedAgentRepo) GetAgent(ctx context.Context, id string) (*model.VerifiedAgent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordIDFormat
	}
	var out model.VerifiedAgent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+verifiedAgentColumns+` FROM verified_agents WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.VerifiedAgent])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("get verified agent: %w", err))
	}
	return &out, nil
}

// ListAgents returns agents newest first.
func (r *VerifiedAgentRepo) ListAgents(ctx context.Context, opts model.RecordListOptions) ([]*model.VerifiedAgent, error) {
	opts = opts.Normalize()
	var out []*model.VerifiedAgent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+verifiedAgentColumns+`
			FROM verified_agents
			ORDER BY created_at DESC, id
			LIMIT $1 OFFSET $2`, opts.Limit, opts.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.VerifiedAgent])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list verified agents: %w", err))
	}
	return out, nil
}

// Create implements core.RecordRepository.
func (r *VerifiedAgentRepo) Create(ctx context.Context, doc map[string]any) (*model.Record, error) {
	req, err := model.NewCreateVerifiedAgentRequest(doc)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	agent, err := r.CreateAgent(ctx, req)
	if err != nil {
		return nil, err
	}
	rec := agent.ToRecord()
	return &rec, nil
}

// GetByID implements core.RecordRepository.
func (r *VerifiedAgentRepo) GetByID(ctx context.Context, id string) (*model.Record, error) {
	agent, err := r.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := agent.ToRecord()
	return &rec, nil
}

// List implements core.RecordRepository.
func (r *VerifiedAgentRepo) List(ctx context.Context, opts model.RecordListOptions) ([]*model.Record, error) {
	agents, err := r.ListAgents(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Record, 0, len(agents))
	for _, a := range agents {
		rec := a.ToRecord()
		out = append(out, &rec)
	}
	return out, nil
}
