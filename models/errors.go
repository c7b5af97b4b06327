package models

import "errors"

// Failure kinds raised by the queue. Errors returned by the database and
// coordinator wrap exactly one of these; test with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyAssigned    = errors.New("ticket already assigned")
	ErrAlreadyRetired     = errors.New("ticket already retired")
	ErrAlreadyExists      = errors.New("already exists")
	ErrValidation         = errors.New("validation failed")
	ErrBadCredentials     = errors.New("invalid credentials")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("timed out")
)
