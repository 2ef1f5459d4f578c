package database

import (
	"errors"
	"strings"
)

// Sentinel errors exposed to callers. ErrDuplicateAddress is a true conflict
// only at source registration; item ingestion treats the duplicate case as a
// no-op success instead.
var (
	ErrDuplicateAddress = errors.New("address already registered")
	ErrUnknownSource    = errors.New("unknown source")
	ErrUnknownItem      = errors.New("unknown item")
	ErrInvalidTier      = errors.New("invalid tier")
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}
