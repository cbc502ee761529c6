package models

import "errors"

// Error kinds surfaced by the engine. Handlers map these to HTTP status
// codes with errors.Is; services wrap them with context via fmt.Errorf and %w.
var (
	// ErrNotFound indicates the referenced task or assignment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the acting user's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates the task or assignment is not in a state that
	// allows the requested transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyClaimed indicates another user won the claim race. Callers
	// should drop the attempt and refresh their available-task list.
	ErrAlreadyClaimed = errors.New("task already claimed")

	// ErrConflict indicates a stale write was detected during reconciliation;
	// the caller must refetch the authoritative record.
	ErrConflict = errors.New("conflict: stale write")
)
