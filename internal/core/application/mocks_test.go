package application_test

import (
	"context"
	"sync"

	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

type mockRepoManager struct {
	repo *mockDepositIndexRepository
}

func (m *mockRepoManager) DepositIndexes() domain.DepositIndexRepository { return m.repo }
func (m *mockRepoManager) Close()                                        { m.repo.Close() }

type mockDepositIndexRepository struct {
	mock.Mock
}

func (m *mockDepositIndexRepository) Get(
	ctx context.Context, name string,
) (*domain.DepositIndex, error) {
	args := m.Called(ctx, name)
	var res *domain.DepositIndex
	if a := args.Get(0); a != nil {
		res = a.(*domain.DepositIndex)
	}
	return res, args.Error(1)
}

func (m *mockDepositIndexRepository) Upsert(
	ctx context.Context, name string, index *domain.DepositIndex,
) error {
	args := m.Called(ctx, name, index)
	return args.Error(0)
}

func (m *mockDepositIndexRepository) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockDepositIndexRepository) Close() {
	m.Called()
}

type mockLiveStore struct {
	mock.Mock
}

func (m *mockLiveStore) SetTip(ctx context.Context, tip domain.Tip) error {
	args := m.Called(ctx, tip)
	return args.Error(0)
}

func (m *mockLiveStore) GetTip(ctx context.Context, name string) (*domain.Tip, error) {
	args := m.Called(ctx, name)
	var res *domain.Tip
	if a := args.Get(0); a != nil {
		res = a.(*domain.Tip)
	}
	return res, args.Error(1)
}

func (m *mockLiveStore) DeleteTip(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockLiveStore) Close() {
	m.Called()
}

// recordingPublisher keeps published events in order.
type recordingPublisher struct {
	lock   sync.Mutex
	events []domain.IndexEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.IndexEvent) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []domain.EventType {
	p.lock.Lock()
	defer p.lock.Unlock()
	types := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// manualScheduler runs the scheduled task only when triggered.
type manualScheduler struct {
	interval int64
	task     func()
	started  bool
	stopped  bool
}

func (s *manualScheduler) Start()               { s.started = true }
func (s *manualScheduler) Stop()                { s.stopped = true }
func (s *manualScheduler) Unit() ports.TimeUnit { return ports.BlockHeight }
func (s *manualScheduler) ScheduleEvery(interval int64, task func()) error {
	s.interval = interval
	s.task = task
	return nil
}

func (s *manualScheduler) trigger() {
	if s.task != nil {
		s.task()
	}
}

type alertsRecorder struct {
	ch chan ports.Topic
}

func (a *alertsRecorder) Publish(_ context.Context, topic ports.Topic, _ any) error {
	a.ch <- topic
	return nil
}
