package ports

import "context"

const (
	DeepRollback     Topic = "Deep Rollback"
	CheckpointFailed Topic = "Checkpoint Failed"
)

type Topic string

type RollbackAlert struct {
	Index      string
	From       uint32
	Removed    uint32
	Size       uint32
	FullAmount int64
}

type CheckpointFailedAlert struct {
	Index string
	Size  uint32
	Error string
}

type Alerts interface {
	Publish(ctx context.Context, topic Topic, message any) error
}
