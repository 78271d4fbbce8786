package ports

import "github.com/arkade-os/depositd/internal/core/domain"

type RepoManager interface {
	DepositIndexes() domain.DepositIndexRepository
	Close()
}
