package application

import (
	"context"

	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/pkg/errors"
)

type Service interface {
	Start(ctx context.Context) errors.Error
	Stop()
	// PushBlock appends the block at height with the running total amount.
	PushBlock(ctx context.Context, height uint32, amount int64) (*IndexInfo, errors.Error)
	// ApplyBlock appends a block by adding its net deposit change to the
	// current total.
	ApplyBlock(ctx context.Context, block domain.BlockDeposits) (*IndexInfo, errors.Error)
	DisconnectBlock(ctx context.Context) (*IndexInfo, errors.Error)
	// Rollback drops every block at or above from and returns how many were
	// removed.
	Rollback(ctx context.Context, from uint32) (uint32, errors.Error)
	GetDepositAmountAtHeight(ctx context.Context, height uint32) int64
	GetFullDepositAmount(ctx context.Context) int64
	GetEntries(ctx context.Context) []domain.DepositIndexEntry
	GetInfo(ctx context.Context) *IndexInfo
	Checkpoint(ctx context.Context) errors.Error
	ExportSnapshot(ctx context.Context) ([]byte, errors.Error)
	ImportSnapshot(ctx context.Context, data []byte) errors.Error
}

type Config struct {
	// IndexName identifies the snapshot in the repository and the tip in the
	// live store.
	IndexName string
	// ExpectedHeight is a capacity hint for the in-memory index.
	ExpectedHeight uint32
	// CheckpointInterval is expressed in the scheduler's time unit, 0
	// disables periodic checkpoints.
	CheckpointInterval int64
	// AlertRollbackDepth is the number of blocks a rollback must remove to
	// raise an alert, 0 disables rollback alerts.
	AlertRollbackDepth uint32
}

type IndexInfo struct {
	Name               string
	Size               uint32
	Entries            int
	FullDepositAmount  int64
	Dirty              bool
	LastCheckpointAt   int64
	CheckpointInterval int64
	CheckpointUnit     string
}
