package blockscheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arkade-os/depositd/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

type Option func(*service)

func WithTickerInterval(interval time.Duration) Option {
	return func(s *service) {
		s.tickerInterval = interval
	}
}

type task struct {
	interval int64
	lastRun  int64
	fn       func()
}

// service runs tasks every given number of blocks, reading the height from
// the tip the index publishes to the live store.
type service struct {
	tips           ports.LiveStore
	indexName      string
	lock           sync.Locker
	tasks          []*task
	stopCh         chan struct{}
	stopOnce       *sync.Once
	tickerInterval time.Duration
}

func NewScheduler(
	tips ports.LiveStore, indexName string, opts ...Option,
) (ports.SchedulerService, error) {
	if tips == nil {
		return nil, fmt.Errorf("live store is required")
	}
	if len(indexName) == 0 {
		return nil, fmt.Errorf("index name is required")
	}

	svc := &service{
		tips,
		indexName,
		&sync.Mutex{},
		make([]*task, 0),
		make(chan struct{}),
		&sync.Once{},
		time.Second * 10,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

func (s *service) Start() {
	go func() {
		ticker := time.NewTicker(s.tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				tasks, err := s.popDueTasks()
				if err != nil {
					log.Errorf("error fetching tasks: %s", err)
					continue
				}

				if len(tasks) > 0 {
					log.Debugf("running %d tasks", len(tasks))
				}
				for _, fn := range tasks {
					go fn()
				}
			}
		}
	}()
}

func (s *service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *service) Unit() ports.TimeUnit {
	return ports.BlockHeight
}

func (s *service) ScheduleEvery(interval int64, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.tasks = append(s.tasks, &task{interval: interval, lastRun: -1, fn: fn})
	return nil
}

// popDueTasks returns the tasks whose interval elapsed since their last run.
// A rollback below the last run height restarts the count from the tip.
func (s *service) popDueTasks() ([]func(), error) {
	tip, err := s.fetchTipHeight()
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	due := make([]func(), 0)
	for _, t := range s.tasks {
		if t.lastRun < 0 || tip < t.lastRun {
			t.lastRun = tip
			continue
		}
		if tip-t.lastRun >= t.interval {
			t.lastRun = tip
			due = append(due, t.fn)
		}
	}
	return due, nil
}

func (s *service) fetchTipHeight() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.tickerInterval)
	defer cancel()

	tip, err := s.tips.GetTip(ctx, s.indexName)
	if err != nil {
		return 0, err
	}
	if tip == nil {
		return 0, nil
	}
	return int64(tip.Size), nil
}
