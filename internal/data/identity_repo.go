package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/milestono/api/internal/data/pgxutil"
	domainauth "github.com/milestono/api/internal/domain/auth"
	apperrors "github.com/milestono/api/internal/errors"
	"github.com/milestono/api/internal/ports"
)

var _ ports.IdentityRepository = (*IdentityRepo)(nil)

const identityColumns = `id, external_id, email, display_name, verified, created_at, updated_at`

// IdentityRepo stores local identities in the identities table.
type IdentityRepo struct {
	DB *sql.DB
}

// NewIdentityRepo creates a new IdentityRepo.
func NewIdentityRepo(db *sql.DB) *IdentityRepo {
	return &IdentityRepo{DB: db}
}

// ResolveExternal finds an identity by external id, else links one found by email, else creates it.
// All three steps share one transaction; the email row is locked before linking.
// A concurrent create of the same email loses on the unique index and returns a Conflict.
func (r *IdentityRepo) ResolveExternal(ctx context.Context, ext domainauth.ExternalIdentity) (domainauth.Identity, error) {
	subject := strings.TrimSpace(ext.Subject)
	if subject == "" {
		return domainauth.Identity{}, apperrors.ValidationField("external_id", "external subject is required")
	}
	email := domainauth.NormalizeEmail(ext.Email)
	if email == "" {
		return domainauth.Identity{}, apperrors.ValidationField("email", "email is required")
	}

	var out domainauth.Identity
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
		found, err := scanIdentity(tx.QueryRowContext(ctx,
			`SELECT `+identityColumns+` FROM identities WHERE external_id = $1`, subject))
		if err == nil {
			out = found
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find by external id: %w", err)
		}

		found, err = scanIdentity(tx.QueryRowContext(ctx,
			`SELECT `+identityColumns+` FROM identities WHERE lower(email) = $1 FOR UPDATE`, email))
		switch {
		case err == nil:
			if found.HasExternalID() {
				return ErrIdentityLinked
			}
			out, err = scanIdentity(tx.QueryRowContext(ctx, `
				UPDATE identities
				SET external_id = $2,
				    verified = verified OR $3,
				    display_name = CASE WHEN display_name = '' THEN $4 ELSE display_name END,
				    updated_at = now()
				WHERE id = $1
				RETURNING `+identityColumns,
				found.ID, subject, ext.EmailVerified, ext.DisplayName))
			if err != nil {
				return fmt.Errorf("link identity: %w", err)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find by email: %w", err)
		}

		out, err = scanIdentity(tx.QueryRowContext(ctx, `
			INSERT INTO identities (external_id, email, display_name, verified)
			VALUES ($1, $2, $3, $4)
			RETURNING `+identityColumns,
			subject, email, ext.DisplayName, ext.EmailVerified))
		if err != nil {
			return fmt.Errorf("create identity: %w", err)
		}
		return nil
	}})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return domainauth.Identity{}, err
		}
		return domainauth.Identity{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// GetByID returns the identity with the given id.
func (r *IdentityRepo) GetByID(ctx context.Context, id string) (domainauth.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domainauth.Identity{}, ErrIdentityNotFound
	}
	out, err := scanIdentity(r.DB.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domainauth.Identity{}, ErrIdentityNotFound
	}
	if err != nil {
		return domainauth.Identity{}, apperrors.MapDBError(fmt.Errorf("get identity: %w", err))
	}
	return out, nil
}

func scanIdentity(row *sql.Row) (domainauth.Identity, error) {
	var out domainauth.Identity
	err := row.Scan(
		&out.ID,
		&out.ExternalID,
		&out.Email,
		&out.DisplayName,
		&out.Verified,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	return out, err
}
