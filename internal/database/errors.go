package database

import "errors"

var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("run not found in database")

	// ErrDatabaseMissing is returned by Open when the file does not exist and
	// CreateIfNotExists is false.
	ErrDatabaseMissing = errors.New("database not found")
)
