package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure so callers can decide between retrying,
// re-prompting and giving up.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindPermission
	KindTransient
	KindNotFound
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not found"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Sentinels matched through errors.Is against any *Error of the same kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrPermission = &Error{Kind: KindPermission}
	ErrTransient  = &Error{Kind: KindTransient}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrStorage    = &Error{Kind: KindStorage}
)

// Error is a classified repository failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// E wraps err with a kind and operation name. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation reports malformed input rejected before any write.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// Permission reports that the backend denied access.
func Permission(op string, err error) error {
	return E(KindPermission, op, err)
}

// Transient reports a network, offline or quota failure that may be retried.
func Transient(op string, err error) error {
	return E(KindTransient, op, err)
}

// NotFound reports a missing habit or record.
func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("%s not found", what)}
}

// Storage reports any other storage failure.
func Storage(op string, err error) error {
	return E(KindStorage, op, err)
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsPermission(err error) bool { return KindOf(err) == KindPermission }
func IsTransient(err error) bool  { return KindOf(err) == KindTransient }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsStorage(err error) bool    { return KindOf(err) == KindStorage }
