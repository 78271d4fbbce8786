package domain

import "context"

// DepositIndexRepository persists named snapshots of deposit indexes.
type DepositIndexRepository interface {
	// Get returns the stored index with the given name, nil if there is none.
	Get(ctx context.Context, name string) (*DepositIndex, error)
	// Upsert replaces the stored snapshot of the named index.
	Upsert(ctx context.Context, name string, index *DepositIndex) error
	Delete(ctx context.Context, name string) error
	Close()
}
