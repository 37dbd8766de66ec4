package service

import "errors"

// Kind classifies a facade error without resorting to a dedicated error
// framework — the teacher never reaches for one either, plain
// fmt.Errorf wrapping chains plus errors.Is/As cover every case here.
type Kind string

const (
	ErrInvalid           Kind = "INVALID"
	ErrNotFound          Kind = "NOT_FOUND"
	ErrConflict          Kind = "CONFLICT"
	ErrEngine            Kind = "ENGINE"
	ErrSchemaTranslation Kind = "SCHEMA_TRANSLATION"
)

// Error is the facade-boundary error type. Kind drives the caller-facing
// classification (spec.md §7); Err carries the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err carries kind, matching the errors.Is contract.
func Is(err error, kind Kind) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind == kind
	}
	return false
}
