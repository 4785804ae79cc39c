package apperrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotFound(t *testing.T) {
	for _, err := range []error{
		ErrPharmacyNotFound,
		ErrMaskNotFound,
		ErrUserNotFound,
		ErrListingNotFound,
		ErrTransactionNotFound,
	} {
		t.Run(err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("purchase: %w", err)

			require.ErrorIs(t, wrapped, ErrNotFound, "every entity error is a not found kind")
			require.ErrorIs(t, wrapped, err, "identity must survive wrapping")
		})
	}

	require.NotErrorIs(t, ErrPharmacyNotFound, ErrMaskNotFound, "entity errors must be distinct")
	require.NotErrorIs(t, ErrInsufficientFunds, ErrNotFound)
}

func TestInvalid(t *testing.T) {
	err := Invalid("quantity must be positive, got %d", 0)

	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, "invalid argument: quantity must be positive, got 0", err.Error())
}
