package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPackageNotFound = errors.New("package not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidPath     = errors.New("invalid storage path")
	ErrInvalidResponse = errors.New("invalid backend response")
	ErrTemporary       = errors.New("temporary failure")
	ErrScreenNotFound  = errors.New("screen not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
