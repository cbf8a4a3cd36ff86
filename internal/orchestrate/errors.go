// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"errors"
	"fmt"
)

var (
	// ErrNoArchives is returned when no archive paths were given.
	ErrNoArchives = errors.New("provide one or more Slack export archives")

	// ErrMissingCredential is returned when no token was given.
	ErrMissingCredential = errors.New("enter a Slack legacy token with --token")

	// ErrInvalidParallelism is returned when the worker count is not a
	// positive integer.
	ErrInvalidParallelism = errors.New("invalid thread count")

	// ErrArchiveNotFound matches every *ArchiveNotFoundError.
	ErrArchiveNotFound = errors.New("slack data not found")

	// ErrOutputLocked is returned when another conversion holds the
	// output directory.
	ErrOutputLocked = errors.New("output directory is in use by another conversion")
)

// ArchiveNotFoundError names an archive path that does not exist.
type ArchiveNotFoundError struct {
	Path string
	Err  error
}

func (e *ArchiveNotFoundError) Error() string {
	return fmt.Sprintf("slack data not found: %q", e.Path)
}

// Is makes errors.Is(err, ErrArchiveNotFound) true.
func (e *ArchiveNotFoundError) Is(target error) bool { return target == ErrArchiveNotFound }

func (e *ArchiveNotFoundError) Unwrap() error { return e.Err }

// IsValidation reports whether err was caused by bad user input rather
// than by the engine or the filesystem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoArchives) ||
		errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrInvalidParallelism) ||
		errors.Is(err, ErrArchiveNotFound)
}
