package ports

import (
	"context"

	"github.com/arkade-os/depositd/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.IndexEvent) error
	Close()
}
