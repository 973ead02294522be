package repository

import "errors"

// Sentinel errors shared by repository implementations for stable mapping at
// the service layer.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
