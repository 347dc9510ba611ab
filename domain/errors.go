package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound is returned when a delete or update matched no
	// object.
	ErrObjectNotFound = errors.New("object not found")
	// ErrTargetNil is returned when a decode target is nil.
	ErrTargetNil = errors.New("target interface is nil")
	// ErrNonPointer is returned when a decode target is not a pointer.
	ErrNonPointer = errors.New("target must be a pointer")
	// ErrSessionEnded is returned when a finished transactional session is
	// used again.
	ErrSessionEnded = errors.New("session already ended")
	// ErrClassNotFound is returned when a class has no schema record.
	ErrClassNotFound = errors.New("class not found")
)

// ErrValidation is returned when caller input is rejected before reaching
// the store.
type ErrValidation struct {
	Reason string
}

func (e ErrValidation) Error() string { return e.Reason }

// Invalid returns an [ErrValidation] with a formatted reason.
func Invalid(format string, a ...any) error {
	return ErrValidation{Reason: fmt.Sprintf(format, a...)}
}

// ErrUnsupported is returned for operators and features that are recognized
// but not available.
type ErrUnsupported struct {
	Feature string
}

func (e ErrUnsupported) Error() string { return e.Feature }

// ErrIntegrity is returned when a stored document breaks an invariant the
// schema guarantees.
type ErrIntegrity struct {
	Reason string
}

func (e ErrIntegrity) Error() string { return e.Reason }

// ErrDuplicateValue is returned when a write violates a unique index. Field is
// a best effort hint and may be empty.
type ErrDuplicateValue struct {
	Field string
	Err   error
}

func (e ErrDuplicateValue) Error() string {
	return "A duplicate value for a field with unique values was provided"
}

func (e ErrDuplicateValue) Unwrap() error { return e.Err }

// ErrAuthorization is returned when the store rejects the credentials in use.
type ErrAuthorization struct {
	Err error
}

func (e ErrAuthorization) Error() string {
	return fmt.Sprintf("store authorization failed: %v", e.Err)
}

func (e ErrAuthorization) Unwrap() error { return e.Err }

// ErrTransport wraps network and driver failures.
type ErrTransport struct {
	Err error
}

func (e ErrTransport) Error() string {
	return fmt.Sprintf("store transport failure: %v", e.Err)
}

func (e ErrTransport) Unwrap() error { return e.Err }

// ErrDuplicateKey is produced by store clients when a unique index rejects a
// write. Message carries the store diagnostic text.
type ErrDuplicateKey struct {
	Message string
	Err     error
}

func (e ErrDuplicateKey) Error() string { return e.Message }

func (e ErrDuplicateKey) Unwrap() error { return e.Err }

// ErrNamespaceNotFound is produced by store clients when dropping a
// collection or index that does not exist.
type ErrNamespaceNotFound struct {
	Namespace string
}

func (e ErrNamespaceNotFound) Error() string {
	return fmt.Sprintf("ns not found: %s", e.Namespace)
}

// ErrDecode wraps failures decoding a document into a Go value.
type ErrDecode struct {
	Source any
	Target any
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("cannot decode %T into %T", e.Source, e.Target)
}
