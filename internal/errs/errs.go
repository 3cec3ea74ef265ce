// Package errs holds the error taxonomy shared by the billing engine:
// validation failures, missing entities, store/transport failures and
// permission rejections.
package errs

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("not_found")
	ErrNetwork          = errors.New("network_error")
	ErrPermissionDenied = errors.New("permission_denied")
)

// ValidationError is a field-level rejection. The operation was not attempted.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Code
	}
	return e.Field + ": " + e.Code
}

func NewValidation(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

type notFoundError struct {
	code string
}

func (e *notFoundError) Error() string        { return e.code }
func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound returns a sentinel that matches ErrNotFound under errors.Is.
func NotFound(code string) error {
	return &notFoundError{code: code}
}

type permissionError struct {
	code string
}

func (e *permissionError) Error() string        { return e.code }
func (e *permissionError) Is(target error) bool { return target == ErrPermissionDenied }

// Permission returns a sentinel that matches ErrPermissionDenied under errors.Is.
func Permission(code string) error {
	return &permissionError{code: code}
}

// Store classifies a persistence failure. Missing rows become notFound, anything
// else is reported as ErrNetwork with the original error still reachable.
func Store(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if notFound != nil {
			return notFound
		}
		return ErrNotFound
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrNotFound) || IsValidation(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindNetwork    Kind = "network"
	KindPermission Kind = "permission"
	KindUnknown    Kind = "unknown"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return KindValidation
	case errors.Is(err, ErrPermissionDenied):
		return KindPermission
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	default:
		return KindUnknown
	}
}
