package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
)

// Advisory lock key held while the latest transaction is being cancelled
const latestTransactionLockKey int64 = 0x6d61736b6c617374

type TransactionRepo struct {
	DB DBTX
}

func (r *TransactionRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	const createTransaction = `-- name: CreateTransaction
	INSERT INTO transactions (user_id, pharmacy_id, mask_id, quantity, amount, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, user_id, pharmacy_id, mask_id, quantity, amount, created_at
	`

	rows, _ := r.DB.Query(ctx, createTransaction, t.UserID, t.PharmacyID, t.MaskID, t.Quantity, t.Amount, t.CreatedAt)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return created, nil
	case isViolation(err, pgerrcode.ForeignKeyViolation):
		return created, errors.Join(apperrors.ErrNotFound, err)
	case isViolation(err, pgerrcode.CheckViolation):
		return created, apperrors.Invalid("transaction quantity must be positive, amount non-negative")
	case isViolation(err, pgerrcode.NumericValueOutOfRange):
		return created, apperrors.Invalid("transaction amount %s is too large", t.Amount.StringFixed(2))
	default:
		return created, dbError(err)
	}
}

func (r *TransactionRepo) GetLatest(ctx context.Context, lock bool) (models.Transaction, error) {
	const getLatest = `-- name: GetLatestTransaction
	SELECT id, user_id, pharmacy_id, mask_id, quantity, amount, created_at
	FROM transactions
	ORDER BY created_at DESC, id DESC
	LIMIT 1`

	rows, _ := r.DB.Query(ctx, forUpdate(getLatest, lock))
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, dbError(err)
	}
}

// LockLatest takes transaction scoped advisory lock, released on commit or rollback
func (r *TransactionRepo) LockLatest(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", latestTransactionLockKey)
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (r *TransactionRepo) DeleteTransaction(ctx context.Context, id int64) error {
	const deleteTransaction = `-- name: DeleteTransaction
	DELETE FROM transactions WHERE id = $1
	`

	tag, err := r.DB.Exec(ctx, deleteTransaction, id)
	switch {
	case err != nil:
		return dbError(err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrTransactionNotFound
	default:
		return nil
	}
}

func (r *TransactionRepo) TopUsers(ctx context.Context, from, to time.Time, limit int) ([]models.UserSpending, error) {
	const topUsers = `-- name: TopUsersByAmount
	SELECT u.id, u.name, SUM(t.amount) AS total, COUNT(*)
	FROM transactions t JOIN users u ON u.id = t.user_id
	WHERE t.created_at >= $1 AND t.created_at < $2
	GROUP BY u.id
	ORDER BY total DESC, u.id
	LIMIT $3
	`

	rows, _ := r.DB.Query(ctx, topUsers, from, to, limit)
	spending, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.UserSpending, error) {
		var s models.UserSpending
		err := row.Scan(&s.UserID, &s.Name, &s.TotalAmount, &s.TransactionCount)
		return s, err
	})
	if err != nil {
		return nil, dbError(err)
	}

	return spending, nil
}

func (r *TransactionRepo) Totals(ctx context.Context, from, to time.Time) (models.TransactionTotals, error) {
	const totals = `-- name: TransactionTotals
	SELECT COALESCE(SUM(t.quantity * m.pack_size), 0)::bigint, COALESCE(SUM(t.amount), 0)
	FROM transactions t JOIN masks m ON m.id = t.mask_id
	WHERE t.created_at >= $1 AND t.created_at < $2
	`

	var res models.TransactionTotals
	err := r.DB.QueryRow(ctx, totals, from, to).Scan(&res.MaskCount, &res.Amount)
	if err != nil {
		return res, dbError(err)
	}

	return res, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.PharmacyID, &t.MaskID, &t.Quantity, &t.Amount, &t.CreatedAt)
	return t, err
}
