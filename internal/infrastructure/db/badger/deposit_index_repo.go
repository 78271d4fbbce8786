package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const depositIndexStoreDir = "deposit-index"

type depositIndexDTO struct {
	Name       string
	BlockCount uint32
	Entries    int
	FullAmount int64
	Data       []byte
	UpdatedAt  int64
}

type depositIndexRepository struct {
	store  *badgerhold.Store
	stopGC chan struct{}
}

func NewDepositIndexRepository(config ...interface{}) (domain.DepositIndexRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, depositIndexStoreDir)
	}
	store, stopGC, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open deposit index store: %s", err)
	}

	return &depositIndexRepository{store, stopGC}, nil
}

func (r *depositIndexRepository) Get(
	_ context.Context, name string,
) (*domain.DepositIndex, error) {
	var dto depositIndexDTO
	err := r.store.Get(name, &dto)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit index %s: %w", name, err)
	}

	index := domain.NewDepositIndex()
	if err := index.UnmarshalBinary(dto.Data); err != nil {
		return nil, fmt.Errorf("failed to decode deposit index %s: %w", name, err)
	}
	return index, nil
}

func (r *depositIndexRepository) Upsert(
	_ context.Context, name string, index *domain.DepositIndex,
) error {
	data, err := index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode deposit index %s: %w", name, err)
	}
	dto := depositIndexDTO{
		Name:       name,
		BlockCount: index.Size(),
		Entries:    index.EntryCount(),
		FullAmount: index.FullDepositAmount(),
		Data:       data,
		UpdatedAt:  time.Now().Unix(),
	}

	if err := r.store.Upsert(name, &dto); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = r.store.Upsert(name, &dto)
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *depositIndexRepository) Delete(_ context.Context, name string) error {
	var dto depositIndexDTO
	if err := r.store.Delete(name, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (r *depositIndexRepository) Close() {
	close(r.stopGC)
	// nolint:all
	r.store.Close()
}
