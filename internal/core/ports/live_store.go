package ports

import (
	"context"

	"github.com/arkade-os/depositd/internal/core/domain"
)

// LiveStore mirrors the tip of every index for readers living outside the
// daemon process.
type LiveStore interface {
	SetTip(ctx context.Context, tip domain.Tip) error
	// GetTip returns nil if the named index has no tip yet.
	GetTip(ctx context.Context, name string) (*domain.Tip, error)
	DeleteTip(ctx context.Context, name string) error
	Close()
}
