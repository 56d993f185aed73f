package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQL, Redis)
// from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrInvalidRecord is returned when a record is missing its user id
var ErrInvalidRecord = errors.New("invalid record")
