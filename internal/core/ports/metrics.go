package ports

import "github.com/arkade-os/depositd/internal/core/domain"

type Metrics interface {
	ObserveTip(tip domain.Tip)
	IncBlocksPushed()
	IncBlocksPopped(n uint32)
	IncRollbacks()
	ObserveCheckpoint(seconds float64, size int, err error)
}
