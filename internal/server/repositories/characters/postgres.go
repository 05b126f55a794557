// Package characters provides the PostgreSQL-backed character repository.
package characters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/dbx"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var slotColumns = map[models.TextureSlot]string{
	models.SlotSkin:   "skin_hash",
	models.SlotCape:   "cape_hash",
	models.SlotElytra: "elytra_hash",
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Character) error {

	query :=
		`INSERT INTO characters (uuid, name, owner_id, model)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, c.UUID, c.Name, c.OwnerID, string(c.Model)).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrNameAlreadyTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const selectCharacter = `SELECT uuid, name, owner_id, model, skin_hash, cape_hash, elytra_hash, created_at FROM characters`

type scanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row scanner) (*models.Character, error) {
	var (
		c                  models.Character
		model              string
		skin, cape, elytra sql.NullString
	)
	if err := row.Scan(&c.UUID, &c.Name, &c.OwnerID, &model, &skin, &cape, &elytra, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Model = models.ParseModelType(model)
	c.Textures = make(map[models.TextureSlot]string)
	for slot, v := range map[models.TextureSlot]sql.NullString{
		models.SlotSkin:   skin,
		models.SlotCape:   cape,
		models.SlotElytra: elytra,
	} {
		if v.Valid && v.String != "" {
			c.Textures[slot] = v.String
		}
	}
	return &c, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Character, error) {
	c, err := scanCharacter(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	return r.getOne(ctx, selectCharacter+` WHERE uuid = $1`, id)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Character, error) {
	return r.getOne(ctx, selectCharacter+` WHERE lower(name) = lower($1)`, name)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Character, error) {
	rows, err := r.db.QueryContext(ctx, selectCharacter+` WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM characters WHERE owner_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SetTexture(ctx context.Context, id uuid.UUID, slot models.TextureSlot, hash string) error {
	column, ok := slotColumns[slot]
	if !ok {
		return fmt.Errorf("%w: slot %d", common.ErrInvalidArgument, int(slot))
	}

	value := sql.NullString{String: hash, Valid: hash != ""}
	return r.exec(ctx, `UPDATE characters SET `+column+` = $1 WHERE uuid = $2`, value, id)
}

func (r *PostgresRepository) SetModel(ctx context.Context, id uuid.UUID, model models.ModelType) error {
	return r.exec(ctx, `UPDATE characters SET model = $1 WHERE uuid = $2`, string(model), id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
