package report

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/repository"
)

const dateLayout = "2006-01-02"

type Service struct {
	transactions repository.TransactionRepo
}

func NewService(transactions repository.TransactionRepo) *Service {
	return &Service{transactions: transactions}
}

// TopUsers ranks users by amount spent between start and end dates inclusive (YYYY-MM-DD, UTC)
func (s *Service) TopUsers(ctx context.Context, startDate string, endDate string, limit int) ([]models.UserSpending, error) {
	if limit <= 0 {
		return nil, apperrors.Invalid("limit must be positive, got %d", limit)
	}

	from, to, err := parseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	users, err := s.transactions.TopUsers(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("can't get top users: %w", err)
	}
	return users, nil
}

// Totals counts masks sold and money spent between start and end dates inclusive
func (s *Service) Totals(ctx context.Context, startDate string, endDate string) (models.TransactionTotals, error) {
	from, to, err := parseRange(startDate, endDate)
	if err != nil {
		return models.TransactionTotals{}, err
	}

	totals, err := s.transactions.Totals(ctx, from, to)
	if err != nil {
		return totals, fmt.Errorf("can't get transaction totals: %w", err)
	}
	return totals, nil
}

// parseRange returns [from, to) covering both dates completely
func parseRange(startDate string, endDate string) (from time.Time, to time.Time, err error) {
	from, err = time.Parse(dateLayout, startDate)
	if err != nil {
		return from, to, apperrors.Invalid("start_date must be in YYYY-MM-DD format, got %q", startDate)
	}

	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return from, to, apperrors.Invalid("end_date must be in YYYY-MM-DD format, got %q", endDate)
	}

	if end.Before(from) {
		return from, to, apperrors.Invalid("start_date must not be after end_date")
	}

	return from, end.AddDate(0, 0, 1), nil
}
