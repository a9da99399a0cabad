package service

import (
	"fmt"
)

// NotFoundError reports a missing page, version or contact.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// DuplicateSlugError reports a page creation whose slug is already taken.
type DuplicateSlugError struct {
	Slug string
	Err  error
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("a page with slug %q already exists", e.Slug)
}

func (e *DuplicateSlugError) Unwrap() error { return e.Err }

// StaleVersionError reports an edit against a version that is no longer the
// published one.
type StaleVersionError struct {
	PageID  string
	Version int
	Current int
}

func (e *StaleVersionError) Error() string {
	if e.Current < 0 {
		return fmt.Sprintf("page %s version %d is no longer published", e.PageID, e.Version)
	}
	return fmt.Sprintf("page %s is at version %d, not %d", e.PageID, e.Current, e.Version)
}

// TransientStoreError wraps an unexpected store failure on a read.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// TimeoutError reports a store call that exceeded its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("store call %s timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// RecoveryFailedError means a new version could not be written and the
// previously published version could not be re-published either. The page
// needs manual repair.
type RecoveryFailedError struct {
	PageID      string
	Version     int
	Cause       error
	RecoveryErr error
}

func (e *RecoveryFailedError) Error() string {
	return fmt.Sprintf("page %s left without a published version: republishing version %d failed (%v) after insert failed (%v)",
		e.PageID, e.Version, e.RecoveryErr, e.Cause)
}

func (e *RecoveryFailedError) Unwrap() []error { return []error{e.Cause, e.RecoveryErr} }

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
