package apperrors

import (
	"errors"
	"fmt"
)

// Umbrella kinds. Concrete errors below match one of them with errors.Is
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConflict         = errors.New("conflicting concurrent update, retry the operation")
	ErrStoreUnavailable = errors.New("store unavailable")
)

var (
	ErrPharmacyNotFound    = notFound("pharmacy")
	ErrMaskNotFound        = notFound("mask")
	ErrUserNotFound        = notFound("user")
	ErrListingNotFound     = notFound("listing")
	ErrTransactionNotFound = notFound("transaction")

	ErrPharmacyAlreadyExists = errors.New("pharmacy already exists")
	ErrMaskAlreadyExists     = errors.New("mask already exists")
	ErrListingAlreadyExists  = errors.New("pharmacy already sells this mask")

	ErrInsufficientFunds = errors.New("insufficient funds")
)

type notFoundError struct {
	entity string
}

func notFound(entity string) error {
	return &notFoundError{entity: entity}
}

func (e *notFoundError) Error() string {
	return e.entity + " not found"
}

func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Invalid returns ErrInvalidArgument annotated with the reason
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
