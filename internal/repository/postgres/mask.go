package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
)

type MaskRepo struct {
	DB DBTX
}

func (r *MaskRepo) CreateMask(ctx context.Context, model string, color string, packSize int) (models.Mask, error) {
	const createMask = `-- name: CreateMask
	INSERT INTO masks (model, color, pack_size, name)
	VALUES ($1, $2, $3, $4)
	RETURNING id, model, color, pack_size, name
	`

	rows, _ := r.DB.Query(ctx, createMask, model, color, packSize, models.MaskName(model, color, packSize))
	mask, err := pgx.CollectOneRow(rows, rowToMask)

	switch {
	case err == nil:
		return mask, nil
	case isViolation(err, pgerrcode.UniqueViolation):
		return mask, apperrors.ErrMaskAlreadyExists
	default:
		return mask, dbError(err)
	}
}

func (r *MaskRepo) GetMask(ctx context.Context, id int64) (models.Mask, error) {
	const getMask = `-- name: GetMask
	SELECT id, model, color, pack_size, name FROM masks
	WHERE id = $1
	`

	rows, _ := r.DB.Query(ctx, getMask, id)
	mask, err := pgx.CollectOneRow(rows, rowToMask)

	switch {
	case err == nil:
		return mask, nil
	case errors.Is(err, pgx.ErrNoRows):
		return mask, apperrors.ErrMaskNotFound
	default:
		return mask, dbError(err)
	}
}

// ListModels returns model of every mask, so models shared by several masks are repeated
func (r *MaskRepo) ListModels(ctx context.Context) ([]string, error) {
	const listModels = `-- name: ListMaskModels
	SELECT model FROM masks ORDER BY id
	`

	rows, _ := r.DB.Query(ctx, listModels)
	modelNames, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, dbError(err)
	}

	return modelNames, nil
}

func rowToMask(row pgx.CollectableRow) (models.Mask, error) {
	var m models.Mask
	err := row.Scan(&m.ID, &m.Model, &m.Color, &m.PackSize, &m.Name)
	return m, err
}
