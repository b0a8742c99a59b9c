/*
errors.go - Error taxonomy for the inventory core

ERROR KINDS:
  ErrNotFound:         A referenced card/customer/type/transaction id does not exist
  ErrInvalidInput:     Missing serial, IMSI owned by another card, malformed file
  ErrConflict:         Unique constraint or referential conflict
  ErrPermissionDenied: Caller holds no grant for the operation
  RowError:            One import row failed; collected, never propagated

PROPAGATION:
  NotFound/InvalidInput/Conflict abort the enclosing store transaction.
  RowError is recorded in the import report and processing continues.
  Anything that is none of the above (store unavailable, driver failure)
  aborts the whole operation, including a whole import.

USAGE:
  if inventory.IsNotFound(err) {
      // 404
  }
*/
package inventory

import (
	"errors"
	"fmt"

	"github.com/warp/sim-inventory/access"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")

	// ErrPermissionDenied is shared with the access package so callers can
	// test either name.
	ErrPermissionDenied = access.ErrPermissionDenied
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// Error carries a kind (one of the sentinels) and a human-readable message.
type Error struct {
	Kind    error
	Entity  string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(entity string) error {
	return &Error{Kind: ErrNotFound, Entity: entity, Message: entity + " not found"}
}

func invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func conflictf(entity, format string, args ...any) error {
	return &Error{Kind: ErrConflict, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError returns a NotFound error for the named entity.
func NotFoundError(entity string) error { return notFound(entity) }

// InvalidInputError returns an InvalidInput error with the given message.
func InvalidInputError(format string, args ...any) error { return invalidf(format, args...) }

// ConflictError returns a Conflict error for the named entity.
func ConflictError(entity, format string, args ...any) error {
	return conflictf(entity, format, args...)
}

// RowError is a single import row's failure.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool     { return errors.Is(err, ErrInvalidInput) }
func IsConflict(err error) bool         { return errors.Is(err, ErrConflict) }
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }

// IsBusiness reports whether err is one of the business kinds rather than an
// infrastructure failure.
func IsBusiness(err error) bool {
	return IsNotFound(err) || IsInvalidInput(err) || IsConflict(err) || IsPermissionDenied(err)
}
