// Package trade moves money between users and pharmacies.
//
// Every operation is a single database transaction. Rows are locked with SELECT ... FOR UPDATE
// in the same order (pharmacy, then user) so concurrent operations on the same rows serialize
// instead of losing updates. Lock waits are bounded by postgres lock_timeout and reported as
// apperrors.ErrConflict, which callers may retry.
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/logger"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/repository"
)

const instrumentationName = "github.com/nkiryanov/phantommask/internal/service/trade"

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

type Service struct {
	storage repository.Storage
	now     func() time.Time
	logger  logger.Logger

	tracer        trace.Tracer
	purchases     metric.Int64Counter
	cancellations metric.Int64Counter
}

func NewService(storage repository.Storage, opts ...Option) (*Service, error) {
	s := &Service{
		storage: storage,
		now:     time.Now,
		logger:  logger.NewNoOpLogger(),
		tracer:  otel.Tracer(instrumentationName),
	}

	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter(instrumentationName)

	var err error
	s.purchases, err = meter.Int64Counter("trade.purchases",
		metric.WithDescription("Purchase attempts by result"),
		metric.WithUnit("{purchase}"),
	)
	if err != nil {
		return nil, fmt.Errorf("can't create purchases counter: %w", err)
	}

	s.cancellations, err = meter.Int64Counter("trade.cancellations",
		metric.WithDescription("Cancel latest transaction attempts by result"),
		metric.WithUnit("{cancellation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("can't create cancellations counter: %w", err)
	}

	return s, nil
}

// Purchase charges the user price times quantity and credits the pharmacy with the same amount
// Either both balances change and the transaction is recorded, or nothing changes
func (s *Service) Purchase(ctx context.Context, req models.PurchaseRequest) (receipt models.PurchaseReceipt, err error) {
	ctx, span := s.tracer.Start(ctx, "trade.Purchase", trace.WithAttributes(
		attribute.Int64("pharmacy.id", req.PharmacyID),
		attribute.Int64("mask.id", req.MaskID),
		attribute.Int64("user.id", req.UserID),
		attribute.Int("quantity", req.Quantity),
	))
	defer func() {
		s.record(ctx, span, s.purchases, err)
	}()

	if req.Quantity <= 0 {
		return receipt, apperrors.Invalid("quantity must be a positive integer, got %d", req.Quantity)
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		pharmacy, err := st.Pharmacy().GetPharmacy(ctx, req.PharmacyID, true)
		if err != nil {
			return fmt.Errorf("can't get pharmacy: %w", err)
		}

		mask, err := st.Mask().GetMask(ctx, req.MaskID)
		if err != nil {
			return fmt.Errorf("can't get mask: %w", err)
		}

		user, err := st.User().GetUser(ctx, req.UserID, true)
		if err != nil {
			return fmt.Errorf("can't get user: %w", err)
		}

		listing, err := st.Listing().GetListing(ctx, pharmacy.ID, mask.ID)
		if err != nil {
			return fmt.Errorf("can't get listing: %w", err)
		}

		total := listing.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
		if user.CashBalance.LessThan(total) {
			return fmt.Errorf("user has %s, needs %s: %w", user.CashBalance.StringFixed(2), total.StringFixed(2), apperrors.ErrInsufficientFunds)
		}

		if _, err = st.User().AddBalance(ctx, user.ID, total.Neg()); err != nil {
			return fmt.Errorf("can't charge user: %w", err)
		}

		if _, err = st.Pharmacy().AddBalance(ctx, pharmacy.ID, total); err != nil {
			return fmt.Errorf("can't credit pharmacy: %w", err)
		}

		tr, err := st.Transaction().CreateTransaction(ctx, models.Transaction{
			UserID:     user.ID,
			PharmacyID: pharmacy.ID,
			MaskID:     mask.ID,
			Quantity:   req.Quantity,
			Amount:     total,
			CreatedAt:  s.now().UTC().Truncate(time.Second),
		})
		if err != nil {
			return fmt.Errorf("can't record transaction: %w", err)
		}

		receipt = models.PurchaseReceipt{
			TransactionID: tr.ID,
			UserName:      user.Name,
			PharmacyName:  pharmacy.Name,
			MaskName:      mask.Name,
			Quantity:      tr.Quantity,
			TotalCost:     tr.Amount,
			CreatedAt:     tr.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return models.PurchaseReceipt{}, err
	}

	s.logger.Debug("purchase completed", "transaction_id", receipt.TransactionID, "total", receipt.TotalCost.StringFixed(2))
	return receipt, nil
}

// CancelLatest reverts the most recent transaction of the whole system and deletes it
// Cancellations are serialized: concurrent callers revert one transaction each, newest first
func (s *Service) CancelLatest(ctx context.Context) (receipt models.CancelReceipt, err error) {
	ctx, span := s.tracer.Start(ctx, "trade.CancelLatest")
	defer func() {
		s.record(ctx, span, s.cancellations, err)
	}()

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		if err := st.Transaction().LockLatest(ctx); err != nil {
			return fmt.Errorf("can't lock latest transaction: %w", err)
		}

		latest, err := st.Transaction().GetLatest(ctx, true)
		if err != nil {
			return fmt.Errorf("can't get latest transaction: %w", err)
		}
		span.SetAttributes(attribute.Int64("transaction.id", latest.ID))

		pharmacy, err := st.Pharmacy().GetPharmacy(ctx, latest.PharmacyID, true)
		if err != nil {
			return fmt.Errorf("can't get pharmacy: %w", err)
		}

		user, err := st.User().GetUser(ctx, latest.UserID, true)
		if err != nil {
			return fmt.Errorf("can't get user: %w", err)
		}

		mask, err := st.Mask().GetMask(ctx, latest.MaskID)
		if err != nil {
			return fmt.Errorf("can't get mask: %w", err)
		}

		if err := s.auditAmount(ctx, st, latest); err != nil {
			return err
		}

		if _, err = st.User().AddBalance(ctx, user.ID, latest.Amount); err != nil {
			return fmt.Errorf("can't refund user: %w", err)
		}

		if _, err = st.Pharmacy().AddBalance(ctx, pharmacy.ID, latest.Amount.Neg()); err != nil {
			return fmt.Errorf("can't charge pharmacy back: %w", err)
		}

		if err = st.Transaction().DeleteTransaction(ctx, latest.ID); err != nil {
			return fmt.Errorf("can't delete transaction: %w", err)
		}

		receipt = models.CancelReceipt{
			TransactionID: latest.ID,
			UserName:      user.Name,
			PharmacyName:  pharmacy.Name,
			MaskName:      mask.Name,
			Amount:        latest.Amount,
		}
		return nil
	})
	if err != nil {
		return models.CancelReceipt{}, err
	}

	s.logger.Debug("transaction cancelled", "transaction_id", receipt.TransactionID, "amount", receipt.Amount.StringFixed(2))
	return receipt, nil
}

// auditAmount warns when stored amount differs from the current price times quantity
// The stored amount is always the one reverted, prices may legitimately change after purchase
func (s *Service) auditAmount(ctx context.Context, st repository.Storage, t models.Transaction) error {
	listing, err := st.Listing().GetListing(ctx, t.PharmacyID, t.MaskID)

	switch {
	case errors.Is(err, apperrors.ErrListingNotFound):
		s.logger.Warn("cancelling transaction for a mask the pharmacy no longer sells", "transaction_id", t.ID)
		return nil
	case err != nil:
		return fmt.Errorf("can't get listing: %w", err)
	}

	expected := listing.Price.Mul(decimal.NewFromInt(int64(t.Quantity))).Round(2)
	if !expected.Equal(t.Amount) {
		s.logger.Warn("transaction amount differs from current price",
			"transaction_id", t.ID,
			"amount", t.Amount.StringFixed(2),
			"current", expected.StringFixed(2),
		)
	}
	return nil
}

func (s *Service) record(ctx context.Context, span trace.Span, counter metric.Int64Counter, err error) {
	result := outcome(err)

	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	span.SetAttributes(attribute.String("result", result))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	if errors.Is(err, apperrors.ErrConflict) {
		s.logger.Warn("concurrent update conflict", "error", err)
	}
	span.End()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
