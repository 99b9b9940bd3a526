package data

import apperrors "github.com/milestono/api/internal/errors"

// Shared sentinel errors for data-layer repositories.
// They are AppErrors so handlers can map them by code.
var (
	ErrIdentityNotFound = apperrors.NotFound("identity not found")
	// ErrIdentityLinked means the email belongs to an identity bound to a different external id.
	ErrIdentityLinked = apperrors.Conflict("email is linked to another account")

	ErrRecordNotFound = apperrors.NotFound("record not found")
	ErrRecordIDFormat = apperrors.ValidationField("id", "id must be a UUID")
)
