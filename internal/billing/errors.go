package billing

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error the services return on a rejected operation wraps
// exactly one of these, so callers branch with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity string, id uint) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError points at the field that broke an invariant. Row is the
// 1-indexed position inside a batch or item list, ItemID the stored item, when
// either is known.
type ValidationError struct {
	Field   string
	Row     int
	ItemID  uint
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	if e.ItemID > 0 {
		fmt.Fprintf(&b, "item %d: ", e.ItemID)
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a stale updatedAt token. ItemIDs lists every item whose
// conditional update matched no row.
type ConflictError struct {
	Entity  string
	ID      uint
	ItemIDs []uint
	Row     int
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s was modified by someone else, reload and retry", e.Entity)
	if len(e.ItemIDs) > 0 {
		msg += fmt.Sprintf(" (items %v)", e.ItemIDs)
	} else if e.ID > 0 {
		msg = fmt.Sprintf("%s %d was modified by someone else, reload and retry", e.Entity, e.ID)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	return msg
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// TransitionError is returned when the policy table has no entry for From→To.
type TransitionError struct {
	Kind    string
	From    string
	To      string
	Allowed []string
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s cannot move from %s to %s: %s is final", e.Kind, e.From, e.To, e.From)
	}
	return fmt.Sprintf("%s cannot move from %s to %s, allowed: %s",
		e.Kind, e.From, e.To, strings.Join(e.Allowed, ", "))
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// atRow tags a validation or conflict error raised while processing position
// row (0-indexed) of a batch.
func atRow(err error, row int) error {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Row == 0 {
		ve.Row = row + 1
		return ve
	}
	var ce *ConflictError
	if errors.As(err, &ce) && ce.Row == 0 {
		ce.Row = row + 1
		return ce
	}
	return err
}

func atItem(err error, itemID uint) error {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.ItemID == 0 {
		ve.ItemID = itemID
	}
	return err
}
