package timescheduler

import (
	"fmt"
	"time"

	"github.com/arkade-os/depositd/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Unit() ports.TimeUnit {
	return ports.UnixTime
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) ScheduleEvery(interval int64, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	_, err := s.scheduler.Every(int(interval)).Seconds().
		WaitForSchedule().SingletonMode().Do(task)
	return err
}
