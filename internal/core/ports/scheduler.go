package ports

type TimeUnit int

const (
	UnixTime TimeUnit = iota
	BlockHeight
)

func (u TimeUnit) String() string {
	if u == BlockHeight {
		return "blocks"
	}
	return "seconds"
}

type SchedulerService interface {
	Start()
	Stop()
	Unit() TimeUnit
	// ScheduleEvery runs task repeatedly, every interval expressed in the
	// scheduler's Unit.
	ScheduleEvery(interval int64, task func()) error
}
