package handlers

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/phantommask/internal/apperrors"
)

func itoa(id int64) string {
	return fmt.Sprintf("%d", id)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "9.50", money(decimal.RequireFromString("9.5")))
	require.Equal(t, "0.00", money(decimal.Zero))

	moscow := time.FixedZone("MSK", 3*60*60)
	require.Equal(t, "2021-01-01 21:00:05", timestamp(time.Date(2021, 1, 2, 0, 0, 5, 0, moscow)))

	require.Equal(t, -1.1235, relevance(-1.12345678))
}

func Test_invalidMessage(t *testing.T) {
	err := fmt.Errorf("can't list open pharmacies: %w", apperrors.Invalid("time must be in HH:MM format"))

	require.Equal(t, "time must be in HH:MM format", invalidMessage(err))
	require.Equal(t, "Invalid argument", invalidMessage(apperrors.ErrInvalidArgument))
}

func Test_notFoundMessage(t *testing.T) {
	require.Equal(t, "Mask not found", notFoundMessage(fmt.Errorf("can't get mask: %w", apperrors.ErrMaskNotFound)))
	require.Equal(t, "Not found", notFoundMessage(apperrors.ErrNotFound))
}
