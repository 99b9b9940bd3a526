package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the key from a unique violation detail: "Key (field)=(value) already exists.".
// Expression keys such as "lower(email)" are unwrapped to the column.
var reKeyField = regexp.MustCompile(`Key \((?:[a-z_]+\()?([a-z_]+)\)?\)=`)

// tableLabels maps table names to the labels shown in user-facing messages.
var tableLabels = map[string]string{
	"identities":      "Account",
	"documents":       "Record",
	"verified_agents": "Verified agent",
}

// MapDBError maps database errors to AppError instances:
// - context deadline/cancel → Timeout/Canceled
// - pgx.ErrNoRows → NotFound
// - unique violations → Conflict
// - check and NOT NULL violations → Validation
// - undefined table → Unavailable
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.CheckViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "Invalid data. Please check your input.",
			Field:   fieldFromCheck(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "Required field is missing. Please check your input.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	case pgerrcode.UndefinedTable:
		return &AppError{Code: ErrCodeUnavailable, Message: "Storage is not provisioned.", Cause: pgErr}
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

func mapUniqueViolation(pgErr *pgconn.PgError) error {
	field := pgErr.ColumnName
	if field == "" && pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}
	if field == "" {
		field = inferFieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
	}

	label := TableLabel(pgErr.TableName)
	message := "This value already exists. Please choose a different one."
	if label != "" && field != "" {
		message = label + " with this " + field + " already exists."
	}
	return &AppError{Code: ErrCodeConflict, Message: message, Field: field, Cause: pgErr}
}

// fieldFromCheck reads the column from "<table>_<column>_check".
func fieldFromCheck(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	return inferFieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
}

// inferFieldFromConstraint strips the table prefix and the key/check/unique/idx suffix.
// "identities_email_key" → "email", "verified_agents_status_check" → "status".
func inferFieldFromConstraint(table, constraint string) string {
	constraint = strings.ToLower(constraint)
	if constraint == "" {
		return ""
	}
	if table != "" {
		constraint = strings.TrimPrefix(constraint, strings.ToLower(table)+"_")
	} else {
		for t := range tableLabels {
			if strings.HasPrefix(constraint, t+"_") {
				constraint = strings.TrimPrefix(constraint, t+"_")
				break
			}
		}
	}
	for _, suffix := range []string{"_key", "_check", "_unique", "_idx"} {
		if strings.HasSuffix(constraint, suffix) {
			field := strings.TrimSuffix(constraint, suffix)
			if field == "" || strings.Contains(field, "_") && !isKnownColumn(field) {
				return ""
			}
			return field
		}
	}
	return ""
}

func isKnownColumn(s string) bool {
	switch s {
	case "external_id", "display_name", "verification_date":
		return true
	default:
		return false
	}
}

// TableLabel returns the user-facing label for a table, or "" when unknown.
func TableLabel(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if label, ok := tableLabels[table]; ok {
		return label
	}
	if table == "" {
		return ""
	}
	label := strings.ReplaceAll(strings.Trim(table, "_"), "_", " ")
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
