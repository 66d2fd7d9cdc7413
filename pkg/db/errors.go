package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/shopcart-backend/pkg/errors"
)

const (
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
)

// IsForeignKeyViolation reports whether err is a referential integrity failure
// on either Postgres (SQLSTATE 23503) or sqlite.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if pkgerrors.SQLState(err) == sqlStateForeignKeyViolation {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// IsCheckViolation reports whether err comes from a CHECK constraint.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if pkgerrors.SQLState(err) == sqlStateCheckViolation {
		return true
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}
