package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/repository"
)

type ListingRepo struct {
	DB DBTX
}

func (r *ListingRepo) CreateListing(ctx context.Context, pharmacyID int64, maskID int64, price decimal.Decimal) (models.Listing, error) {
	const createListing = `-- name: CreateListing
	WITH listing AS (
		INSERT INTO pharmacy_masks (pharmacy_id, mask_id, price)
		VALUES ($1, $2, $3)
		RETURNING id, pharmacy_id, mask_id, price
	)
	SELECT l.id, l.pharmacy_id, l.mask_id, m.name, l.price
	FROM listing l JOIN masks m ON m.id = l.mask_id
	`

	rows, _ := r.DB.Query(ctx, createListing, pharmacyID, maskID, price)
	listing, err := pgx.CollectOneRow(rows, rowToListing)

	switch {
	case err == nil:
		return listing, nil
	case isViolation(err, pgerrcode.UniqueViolation):
		return listing, apperrors.ErrListingAlreadyExists
	case isViolation(err, pgerrcode.ForeignKeyViolation):
		return listing, fmt.Errorf("pharmacy or mask does not exist: %w", apperrors.ErrNotFound)
	case isViolation(err, pgerrcode.NumericValueOutOfRange):
		return listing, apperrors.Invalid("price %s is too large", price.String())
	default:
		return listing, dbError(err)
	}
}

func (r *ListingRepo) GetListing(ctx context.Context, pharmacyID int64, maskID int64) (models.Listing, error) {
	const getListing = `-- name: GetListing
	SELECT pm.id, pm.pharmacy_id, pm.mask_id, m.name, pm.price
	FROM pharmacy_masks pm JOIN masks m ON m.id = pm.mask_id
	WHERE pm.pharmacy_id = $1 AND pm.mask_id = $2
	`

	rows, _ := r.DB.Query(ctx, getListing, pharmacyID, maskID)
	listing, err := pgx.CollectOneRow(rows, rowToListing)

	switch {
	case err == nil:
		return listing, nil
	case errors.Is(err, pgx.ErrNoRows):
		return listing, apperrors.ErrListingNotFound
	default:
		return listing, dbError(err)
	}
}

func (r *ListingRepo) UpdatePrice(ctx context.Context, pharmacyID int64, maskID int64, price decimal.Decimal) (models.Listing, error) {
	const updatePrice = `-- name: UpdateListingPrice
	WITH listing AS (
		UPDATE pharmacy_masks SET price = $3
		WHERE pharmacy_id = $1 AND mask_id = $2
		RETURNING id, pharmacy_id, mask_id, price
	)
	SELECT l.id, l.pharmacy_id, l.mask_id, m.name, l.price
	FROM listing l JOIN masks m ON m.id = l.mask_id
	`

	rows, _ := r.DB.Query(ctx, updatePrice, pharmacyID, maskID, price)
	listing, err := pgx.CollectOneRow(rows, rowToListing)

	switch {
	case err == nil:
		return listing, nil
	case errors.Is(err, pgx.ErrNoRows):
		return listing, apperrors.ErrListingNotFound
	case isViolation(err, pgerrcode.CheckViolation):
		return listing, apperrors.Invalid("price must not be negative")
	case isViolation(err, pgerrcode.NumericValueOutOfRange):
		return listing, apperrors.Invalid("price %s is too large", price.String())
	default:
		return listing, dbError(err)
	}
}

func (r *ListingRepo) ListByPharmacy(ctx context.Context, pharmacyID int64, sort repository.ListingSort) ([]models.Listing, error) {
	const listByPharmacy = `-- name: ListListingsByPharmacy
	SELECT pm.id, pm.pharmacy_id, pm.mask_id, m.name, pm.price
	FROM pharmacy_masks pm JOIN masks m ON m.id = pm.mask_id
	WHERE pm.pharmacy_id = $1
	`

	var orderBy string
	switch sort {
	case repository.SortByPrice:
		orderBy = "ORDER BY pm.price, m.name"
	case repository.SortByName:
		orderBy = "ORDER BY m.name"
	default:
		return nil, apperrors.Invalid("unknown listing sort %q", sort)
	}

	rows, _ := r.DB.Query(ctx, listByPharmacy+orderBy, pharmacyID)
	listings, err := pgx.CollectRows(rows, rowToListing)
	if err != nil {
		return nil, dbError(err)
	}

	return listings, nil
}

func rowToListing(row pgx.CollectableRow) (models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.PharmacyID, &l.MaskID, &l.MaskName, &l.Price)
	return l, err
}
