package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
)

type UserRepo struct {
	DB DBTX
}

func (r *UserRepo) CreateUser(ctx context.Context, name string, balance decimal.Decimal) (models.User, error) {
	const createUser = `-- name: CreateUser
	INSERT INTO users (name, cash_balance)
	VALUES ($1, $2)
	RETURNING id, name, cash_balance
	`

	rows, _ := r.DB.Query(ctx, createUser, name, balance)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case isViolation(err, pgerrcode.CheckViolation):
		return user, apperrors.ErrInsufficientFunds
	default:
		return user, dbError(err)
	}
}

func (r *UserRepo) GetUser(ctx context.Context, id int64, lock bool) (models.User, error) {
	const getUser = `-- name: GetUser
	SELECT id, name, cash_balance FROM users
	WHERE id = $1`

	rows, _ := r.DB.Query(ctx, forUpdate(getUser, lock), id)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, dbError(err)
	}
}

func (r *UserRepo) AddBalance(ctx context.Context, id int64, delta decimal.Decimal) (models.User, error) {
	const addBalance = `-- name: AddUserBalance
	UPDATE users SET cash_balance = cash_balance + $2
	WHERE id = $1
	RETURNING id, name, cash_balance
	`

	rows, _ := r.DB.Query(ctx, addBalance, id, delta)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	case isViolation(err, pgerrcode.CheckViolation):
		return user, apperrors.ErrInsufficientFunds
	default:
		return user, dbError(err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.CashBalance)
	return u, err
}
