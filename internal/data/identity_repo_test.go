package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	domainauth "github.com/milestono/api/internal/domain/auth"
	apperrors "github.com/milestono/api/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIdentityID = "7f3c0a52-3d49-4f6f-9b2a-1f4f1c0f9a10"

var identityCols = []string{"id", "external_id", "email", "display_name", "verified", "created_at", "updated_at"}

func newIdentityRepoMock(t *testing.T) (*IdentityRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewIdentityRepo(db), mock
}

func TestIdentityRepo_ResolveExternal_FoundByExternalID(t *testing.T) {
	repo, mock := newIdentityRepoMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM identities WHERE external_id = ").
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(testIdentityID, "g-1", "a@x.com", "A", true, now, now))
	mock.ExpectCommit()

	got, err := repo.ResolveExternal(context.Background(), domainauth.ExternalIdentity{Subject: "g-1", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, testIdentityID, got.ID)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "g-1", *got.ExternalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_ResolveExternal_LinksExistingEmail(t *testing.T) {
	repo, mock := newIdentityRepoMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM identities WHERE external_id = ").
		WithArgs("g-2").
		WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectQuery(`FROM identities WHERE lower\(email\) = \$1 FOR UPDATE`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(testIdentityID, nil, "a@x.com", "", false, now, now))
	mock.ExpectQuery("UPDATE identities").
		WithArgs(testIdentityID, "g-2", true, "Alice").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(testIdentityID, "g-2", "a@x.com", "Alice", true, now, now))
	mock.ExpectCommit()

	got, err := repo.ResolveExternal(context.Background(), domainauth.ExternalIdentity{
		Subject:       "g-2",
		Email:         " A@X.com",
		DisplayName:   "Alice",
		EmailVerified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, testIdentityID, got.ID)
	assert.Equal(t, "g-2", *got.ExternalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_ResolveExternal_CreatesNew(t *testing.T) {
	repo, mock := newIdentityRepoMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE external_id = ").WithArgs("g-3").WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectQuery("FOR UPDATE").WithArgs("new@x.com").WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectQuery("INSERT INTO identities").
		WithArgs("g-3", "new@x.com", "New", false).
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(testIdentityID, "g-3", "new@x.com", "New", false, now, now))
	mock.ExpectCommit()

	got, err := repo.ResolveExternal(context.Background(), domainauth.ExternalIdentity{Subject: "g-3", Email: "new@x.com", DisplayName: "New"})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", got.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_ResolveExternal_EmailLinkedElsewhere(t *testing.T) {
	repo, mock := newIdentityRepoMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE external_id = ").WithArgs("g-4").WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectQuery("FOR UPDATE").WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(testIdentityID, "g-other", "a@x.com", "A", true, now, now))
	mock.ExpectRollback()

	_, err := repo.ResolveExternal(context.Background(), domainauth.ExternalIdentity{Subject: "g-4", Email: "a@x.com"})
	require.ErrorIs(t, err, ErrIdentityLinked)
	assert.True(t, apperrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_ResolveExternal_CreateRaceFailsClosed(t *testing.T) {
	repo, mock := newIdentityRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE external_id = ").WithArgs("g-5").WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectQuery("FOR UPDATE").WithArgs("race@x.com").WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectQuery("INSERT INTO identities").
		WillReturnError(&pgconn.PgError{
			Code:           pgerrcode.UniqueViolation,
			TableName:      "identities",
			ConstraintName: "identities_email_key",
		})
	mock.ExpectRollback()

	_, err := repo.ResolveExternal(context.Background(), domainauth.ExternalIdentity{Subject: "g-5", Email: "race@x.com"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "email", apperrors.GetField(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_ResolveExternal_Validation(t *testing.T) {
	repo, mock := newIdentityRepoMock(t)

	_, err := repo.ResolveExternal(context.Background(), domainauth.ExternalIdentity{Email: "a@x.com"})
	assert.True(t, apperrors.IsValidation(err))
	_, err = repo.ResolveExternal(context.Background(), domainauth.ExternalIdentity{Subject: "g"})
	assert.True(t, apperrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_GetByID(t *testing.T) {
	repo, mock := newIdentityRepoMock(t)
	now := time.Now()

	mock.ExpectQuery("FROM identities WHERE id = ").
		WithArgs(testIdentityID).
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(testIdentityID, nil, "a@x.com", "A", false, now, now))
	got, err := repo.GetByID(context.Background(), testIdentityID)
	require.NoError(t, err)
	assert.Nil(t, got.ExternalID)

	mock.ExpectQuery("FROM identities WHERE id = ").WithArgs(testIdentityID).WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), testIdentityID)
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	_, err = repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
