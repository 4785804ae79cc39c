package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/repository"
)

const microsecondsPerMinute = 60 * 1_000_000

var comparisonOperators = map[repository.Comparison]string{
	repository.CompareGT:  ">",
	repository.CompareGTE: ">=",
	repository.CompareLT:  "<",
	repository.CompareLTE: "<=",
}

type PharmacyRepo struct {
	DB DBTX
}

func (r *PharmacyRepo) CreatePharmacy(ctx context.Context, name string, balance decimal.Decimal) (models.Pharmacy, error) {
	const createPharmacy = `-- name: CreatePharmacy
	INSERT INTO pharmacies (name, cash_balance)
	VALUES ($1, $2)
	RETURNING id, name, cash_balance
	`

	rows, _ := r.DB.Query(ctx, createPharmacy, name, balance)
	pharmacy, err := pgx.CollectOneRow(rows, rowToPharmacy)

	switch {
	case err == nil:
		return pharmacy, nil
	case isViolation(err, pgerrcode.UniqueViolation):
		return pharmacy, apperrors.ErrPharmacyAlreadyExists
	default:
		return pharmacy, dbError(err)
	}
}

func (r *PharmacyRepo) GetPharmacy(ctx context.Context, id int64, lock bool) (models.Pharmacy, error) {
	const getPharmacy = `-- name: GetPharmacy
	SELECT id, name, cash_balance FROM pharmacies
	WHERE id = $1`

	rows, _ := r.DB.Query(ctx, forUpdate(getPharmacy, lock), id)
	return collectPharmacy(rows)
}

func (r *PharmacyRepo) GetPharmacyByName(ctx context.Context, name string) (models.Pharmacy, error) {
	const getPharmacyByName = `-- name: GetPharmacyByName
	SELECT id, name, cash_balance FROM pharmacies
	WHERE name = $1
	`

	rows, _ := r.DB.Query(ctx, getPharmacyByName, name)
	return collectPharmacy(rows)
}

func (r *PharmacyRepo) AddBalance(ctx context.Context, id int64, delta decimal.Decimal) (models.Pharmacy, error) {
	const addBalance = `-- name: AddPharmacyBalance
	UPDATE pharmacies SET cash_balance = cash_balance + $2
	WHERE id = $1
	RETURNING id, name, cash_balance
	`

	rows, _ := r.DB.Query(ctx, addBalance, id, delta)
	return collectPharmacy(rows)
}

func (r *PharmacyRepo) SetOpeningHours(ctx context.Context, pharmacyID int64, day models.Weekday, hours models.OpeningHours) error {
	const setOpeningHours = `-- name: SetOpeningHours
	INSERT INTO pharmacy_opening_hours (pharmacy_id, weekday, opens_at, closes_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (pharmacy_id, weekday) DO UPDATE
	SET opens_at = EXCLUDED.opens_at, closes_at = EXCLUDED.closes_at
	`

	_, err := r.DB.Exec(ctx, setOpeningHours, pharmacyID, int16(day), toPgTime(hours.Opens), toPgTime(hours.Closes))

	switch {
	case err == nil:
		return nil
	case isViolation(err, pgerrcode.ForeignKeyViolation):
		return apperrors.ErrPharmacyNotFound
	default:
		return dbError(err)
	}
}

func (r *PharmacyRepo) GetSchedule(ctx context.Context, pharmacyID int64) (models.WeeklySchedule, error) {
	const getSchedule = `-- name: GetSchedule
	SELECT weekday, opens_at, closes_at FROM pharmacy_opening_hours
	WHERE pharmacy_id = $1
	`

	var schedule models.WeeklySchedule

	rows, _ := r.DB.Query(ctx, getSchedule, pharmacyID)
	var (
		weekday       int16
		opens, closes pgtype.Time
	)
	_, err := pgx.ForEachRow(rows, []any{&weekday, &opens, &closes}, func() error {
		if weekday < 0 || int(weekday) >= len(schedule) {
			return fmt.Errorf("weekday %d out of range", weekday)
		}
		schedule[weekday] = &models.OpeningHours{
			Opens:  fromPgTime(opens),
			Closes: fromPgTime(closes),
		}
		return nil
	})
	if err != nil {
		return schedule, dbError(err)
	}

	return schedule, nil
}

// ListOpenAt treats a window closing after midnight as covering both the evening and early hours of the same weekday
func (r *PharmacyRepo) ListOpenAt(ctx context.Context, day models.Weekday, at models.TimeOfDay) ([]models.Pharmacy, error) {
	const listOpenAt = `-- name: ListOpenPharmacies
	SELECT p.id, p.name, p.cash_balance
	FROM pharmacies p
	JOIN pharmacy_opening_hours h ON h.pharmacy_id = p.id
	WHERE h.weekday = $1 AND (
		(h.opens_at <= h.closes_at AND $2::time BETWEEN h.opens_at AND h.closes_at)
		OR (h.opens_at > h.closes_at AND ($2::time >= h.opens_at OR $2::time <= h.closes_at))
	)
	ORDER BY p.name
	`

	rows, _ := r.DB.Query(ctx, listOpenAt, int16(day), toPgTime(at))
	pharmacies, err := pgx.CollectRows(rows, rowToPharmacy)
	if err != nil {
		return nil, dbError(err)
	}

	return pharmacies, nil
}

func (r *PharmacyRepo) ListByListingCount(ctx context.Context, minPrice, maxPrice decimal.Decimal, cmp repository.Comparison, count int) ([]models.Pharmacy, error) {
	const listByListingCount = `-- name: ListPharmaciesByListingCount
	SELECT p.id, p.name, p.cash_balance
	FROM pharmacies p
	LEFT JOIN pharmacy_masks pm ON pm.pharmacy_id = p.id AND pm.price BETWEEN $1 AND $2
	GROUP BY p.id
	HAVING COUNT(pm.id) %s $3
	ORDER BY p.name
	`

	op, ok := comparisonOperators[cmp]
	if !ok {
		return nil, apperrors.Invalid("unknown comparison %q", cmp)
	}

	rows, _ := r.DB.Query(ctx, fmt.Sprintf(listByListingCount, op), minPrice, maxPrice, count)
	pharmacies, err := pgx.CollectRows(rows, rowToPharmacy)
	if err != nil {
		return nil, dbError(err)
	}

	return pharmacies, nil
}

func (r *PharmacyRepo) ListNames(ctx context.Context) ([]string, error) {
	const listNames = `-- name: ListPharmacyNames
	SELECT name FROM pharmacies ORDER BY id
	`

	rows, _ := r.DB.Query(ctx, listNames)
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, dbError(err)
	}

	return names, nil
}

func collectPharmacy(rows pgx.Rows) (models.Pharmacy, error) {
	pharmacy, err := pgx.CollectOneRow(rows, rowToPharmacy)

	switch {
	case err == nil:
		return pharmacy, nil
	case errors.Is(err, pgx.ErrNoRows):
		return pharmacy, apperrors.ErrPharmacyNotFound
	default:
		return pharmacy, dbError(err)
	}
}

func rowToPharmacy(row pgx.CollectableRow) (models.Pharmacy, error) {
	var p models.Pharmacy
	err := row.Scan(&p.ID, &p.Name, &p.CashBalance)
	return p, err
}

func toPgTime(t models.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * microsecondsPerMinute, Valid: true}
}

func fromPgTime(t pgtype.Time) models.TimeOfDay {
	return models.TimeOfDay(t.Microseconds / microsecondsPerMinute)
}
