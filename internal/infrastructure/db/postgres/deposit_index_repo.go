package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arkade-os/depositd/internal/core/domain"
)

const (
	selectDepositIndex = `SELECT data FROM deposit_index WHERE name = $1`
	upsertDepositIndex = `
INSERT INTO deposit_index (
    name, version, block_count, entry_count, full_amount, data, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name) DO UPDATE SET
    version = EXCLUDED.version,
    block_count = EXCLUDED.block_count,
    entry_count = EXCLUDED.entry_count,
    full_amount = EXCLUDED.full_amount,
    data = EXCLUDED.data,
    updated_at = EXCLUDED.updated_at`
	deleteDepositIndex = `DELETE FROM deposit_index WHERE name = $1`
)

type depositIndexRepository struct {
	db *sql.DB
}

func NewDepositIndexRepository(config ...interface{}) (domain.DepositIndexRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open deposit index repository: expected *sql.DB but got %T", config[0],
		)
	}

	return &depositIndexRepository{db}, nil
}

func (r *depositIndexRepository) Get(
	ctx context.Context, name string,
) (*domain.DepositIndex, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, selectDepositIndex, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit index %s: %w", name, err)
	}

	index := domain.NewDepositIndex()
	if err := index.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to decode deposit index %s: %w", name, err)
	}
	return index, nil
}

func (r *depositIndexRepository) Upsert(
	ctx context.Context, name string, index *domain.DepositIndex,
) error {
	data, err := index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode deposit index %s: %w", name, err)
	}

	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx, upsertDepositIndex,
			name, int16(domain.SnapshotVersion), int64(index.Size()), int64(index.EntryCount()),
			index.FullDepositAmount(), data, time.Now().Unix(),
		)
		return err
	})
}

func (r *depositIndexRepository) Delete(ctx context.Context, name string) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, deleteDepositIndex, name)
		return err
	})
}

func (r *depositIndexRepository) Close() {
	_ = r.db.Close()
}
