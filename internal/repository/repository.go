package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/phantommask/internal/models"
)

// Comparison operator for counting filters
type Comparison string

const (
	CompareGT  Comparison = "gt"
	CompareGTE Comparison = "gte"
	CompareLT  Comparison = "lt"
	CompareLTE Comparison = "lte"
)

func (c Comparison) Valid() bool {
	switch c {
	case CompareGT, CompareGTE, CompareLT, CompareLTE:
		return true
	}
	return false
}

type ListingSort string

const (
	SortByName  ListingSort = "name"
	SortByPrice ListingSort = "price"
)

func (s ListingSort) Valid() bool {
	return s == SortByName || s == SortByPrice
}

// User repository interface
type UserRepo interface {
	CreateUser(ctx context.Context, name string, balance decimal.Decimal) (models.User, error)

	// Get user by id, lock the row until transaction end if forUpdate set
	// If user not found must return apperrors.ErrUserNotFound
	GetUser(ctx context.Context, id int64, forUpdate bool) (models.User, error)

	// Add delta (may be negative) to user balance and return the updated user
	// If balance becomes negative must return apperrors.ErrInsufficientFunds
	AddBalance(ctx context.Context, id int64, delta decimal.Decimal) (models.User, error)
}

// Pharmacy repository interface
type PharmacyRepo interface {
	// If pharmacy with the name exists must return apperrors.ErrPharmacyAlreadyExists
	CreatePharmacy(ctx context.Context, name string, balance decimal.Decimal) (models.Pharmacy, error)

	// If pharmacy not found must return apperrors.ErrPharmacyNotFound
	GetPharmacy(ctx context.Context, id int64, forUpdate bool) (models.Pharmacy, error)
	GetPharmacyByName(ctx context.Context, name string) (models.Pharmacy, error)

	AddBalance(ctx context.Context, id int64, delta decimal.Decimal) (models.Pharmacy, error)

	SetOpeningHours(ctx context.Context, pharmacyID int64, day models.Weekday, hours models.OpeningHours) error
	GetSchedule(ctx context.Context, pharmacyID int64) (models.WeeklySchedule, error)

	// Pharmacies open at the given moment ordered by name
	ListOpenAt(ctx context.Context, day models.Weekday, at models.TimeOfDay) ([]models.Pharmacy, error)

	// Pharmacies whose number of listings priced in [minPrice, maxPrice] compares with count
	ListByListingCount(ctx context.Context, minPrice, maxPrice decimal.Decimal, cmp Comparison, count int) ([]models.Pharmacy, error)

	ListNames(ctx context.Context) ([]string, error)
}

// Mask repository interface
type MaskRepo interface {
	// Mask name is derived from model, color and pack size
	// If the same mask exists must return apperrors.ErrMaskAlreadyExists
	CreateMask(ctx context.Context, model string, color string, packSize int) (models.Mask, error)

	// If mask not found must return apperrors.ErrMaskNotFound
	GetMask(ctx context.Context, id int64) (models.Mask, error)

	ListModels(ctx context.Context) ([]string, error)
}

// Listing repository interface
type ListingRepo interface {
	CreateListing(ctx context.Context, pharmacyID int64, maskID int64, price decimal.Decimal) (models.Listing, error)

	// If pharmacy does not sell the mask must return apperrors.ErrListingNotFound
	GetListing(ctx context.Context, pharmacyID int64, maskID int64) (models.Listing, error)

	// If pharmacy does not sell the mask must return apperrors.ErrListingNotFound
	UpdatePrice(ctx context.Context, pharmacyID int64, maskID int64, price decimal.Decimal) (models.Listing, error)

	ListByPharmacy(ctx context.Context, pharmacyID int64, sort ListingSort) ([]models.Listing, error)
}

// Transaction repository interface
type TransactionRepo interface {
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// Most recent transaction by created_at, ties broken by id
	// If there are no transactions must return apperrors.ErrTransactionNotFound
	GetLatest(ctx context.Context, forUpdate bool) (models.Transaction, error)

	// Block other callers of LockLatest until current transaction ends
	LockLatest(ctx context.Context) error

	// If transaction not found must return apperrors.ErrTransactionNotFound
	DeleteTransaction(ctx context.Context, id int64) error

	// Aggregates over transactions created in [from, to)
	TopUsers(ctx context.Context, from, to time.Time, limit int) ([]models.UserSpending, error)
	Totals(ctx context.Context, from, to time.Time) (models.TransactionTotals, error)
}

type Storage interface {
	User() UserRepo
	Pharmacy() PharmacyRepo
	Mask() MaskRepo
	Listing() ListingRepo
	Transaction() TransactionRepo

	// Run fn in a database transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
