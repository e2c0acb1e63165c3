package orders

import (
	"errors"
	"fmt"
)

// Kind classifies domain failures. The set is closed; callers switch on it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalid
	KindInsufficientStock
	KindInvalidTransition
	KindAlreadyInvoiced
	KindNotYetCompleted
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid_input"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindAlreadyInvoiced:
		return "already_invoiced"
	case KindNotYetCompleted:
		return "not_yet_completed"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by every core operation.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func internalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Message: "storage failure", Err: err}
}

// KindOf returns the Kind carried by err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}

// Store adapters report these; driver-specific codes never reach the core.
var (
	ErrNotFound            = errors.New("store: not found")
	ErrUniqueViolation     = errors.New("store: unique violation")
	ErrForeignKeyViolation = errors.New("store: foreign key violation")
)

// wrap lifts store errors into domain errors; *Error values pass through.
func wrap(op string, err error, notFound string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForeignKeyViolation) {
		if notFound == "" {
			notFound = "referenced entity does not exist"
		}
		return &Error{Op: op, Kind: KindNotFound, Message: notFound, Err: err}
	}
	return internalError(op, err)
}
