package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrUnreadablePayload   = errors.New("unreadable payload")
	ErrUnknownProfile      = errors.New("unknown compilation profile")
	ErrCatalogIntegrity    = errors.New("catalog integrity violation")
	ErrMatterNotFound      = errors.New("matter not found")
	ErrPolicyBlocked       = errors.New("policy blocked")
	ErrArtifactUnavailable = errors.New("compiled artifact unavailable")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// Validationf is shorthand for a validation error without an underlying cause.
func Validationf(operation, format string, args ...any) error {
	return WrapError(ErrValidation, operation, fmt.Errorf(format, args...))
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
