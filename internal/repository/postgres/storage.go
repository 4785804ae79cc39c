package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/repository"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) Pharmacy() repository.PharmacyRepo {
	return &PharmacyRepo{DB: s.db}
}

func (s *Storage) Mask() repository.MaskRepo {
	return &MaskRepo{DB: s.db}
}

func (s *Storage) Listing() repository.ListingRepo {
	return &ListingRepo{DB: s.db}
}

func (s *Storage) Transaction() repository.TransactionRepo {
	return &TransactionRepo{DB: s.db}
}

// InTx runs fn in a transaction. Inside an outer transaction a savepoint is used
// A panic in fn rolls the transaction back and is re-raised
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", dbError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}

		switch err {
		case nil:
			if cerr := tx.Commit(ctx); cerr != nil {
				err = fmt.Errorf("db commit error: %w", dbError(cerr))
			}
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}

// dbError classifies driver errors into the kinds callers act on
func dbError(err error) error {
	var pgErr *pgconn.PgError
	var connectErr *pgconn.ConnectError

	switch {
	case errors.As(err, &pgErr):
		switch {
		case pgErr.Code == pgerrcode.SerializationFailure,
			pgErr.Code == pgerrcode.DeadlockDetected,
			pgErr.Code == pgerrcode.LockNotAvailable:
			return fmt.Errorf("%w: %w", apperrors.ErrConflict, err)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code):
			return fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
		}
	case errors.As(err, &connectErr), pgconn.Timeout(err):
		return fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("db error: %w", err)
}

func isViolation(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func forUpdate(q string, lock bool) string {
	if lock {
		return q + "\nFOR UPDATE"
	}
	return q
}
