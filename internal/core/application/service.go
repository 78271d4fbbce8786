package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/internal/core/ports"
	"github.com/arkade-os/depositd/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const alertTimeout = 30 * time.Second

type service struct {
	// services
	repoManager ports.RepoManager
	liveStore   ports.LiveStore
	scheduler   ports.SchedulerService
	publisher   ports.EventPublisher
	metrics     ports.Metrics
	alerts      ports.Alerts

	// config
	name               string
	expectedHeight     uint32
	checkpointInterval int64
	alertRollbackDepth uint32

	// index state, guarded by lock
	lock             *sync.RWMutex
	index            *domain.DepositIndex
	revision         uint64
	savedRevision    uint64
	lastCheckpointAt int64

	checkpointLock *sync.Mutex

	// notifications run outside lock in mutation order: a ticket is drawn
	// under lock and served once the previous one completed.
	notifyCond *sync.Cond
	notifySeq  uint64
	notifyTurn uint64
}

// NewService returns the service owning the named deposit index. liveStore,
// scheduler, publisher, metrics and alerts are optional.
func NewService(
	cfg Config,
	repoManager ports.RepoManager,
	liveStore ports.LiveStore,
	scheduler ports.SchedulerService,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	alerts ports.Alerts,
) (Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("missing index name")
	}
	if cfg.CheckpointInterval < 0 {
		return nil, fmt.Errorf("checkpoint interval must not be negative")
	}

	return &service{
		repoManager:        repoManager,
		liveStore:          liveStore,
		scheduler:          scheduler,
		publisher:          publisher,
		metrics:            metrics,
		alerts:             alerts,
		name:               cfg.IndexName,
		expectedHeight:     cfg.ExpectedHeight,
		checkpointInterval: cfg.CheckpointInterval,
		alertRollbackDepth: cfg.AlertRollbackDepth,
		lock:               &sync.RWMutex{},
		index:              domain.NewDepositIndexWithHeight(cfg.ExpectedHeight),
		checkpointLock:     &sync.Mutex{},
		notifyCond:         sync.NewCond(&sync.Mutex{}),
	}, nil
}

func (s *service) Start(ctx context.Context) errors.Error {
	log.Debugf("loading deposit index %s...", s.name)
	index, err := s.repoManager.DepositIndexes().Get(ctx, s.name)
	if err != nil {
		return toTypedError(fmt.Errorf("failed to load deposit index: %w", err))
	}
	if index == nil {
		log.Infof("no snapshot found for deposit index %s, starting empty", s.name)
		index = domain.NewDepositIndexWithHeight(s.expectedHeight)
	} else {
		index.Reserve(s.expectedHeight)
	}

	s.lock.Lock()
	s.index = index
	s.revision, s.savedRevision = 0, 0
	s.lastCheckpointAt = time.Now().Unix()
	s.unlockAndNotify(ctx, nil)

	log.WithFields(log.Fields{
		"index":       s.name,
		"size":        index.Size(),
		"entries":     index.EntryCount(),
		"full_amount": index.FullDepositAmount(),
	}).Info("deposit index loaded")

	if s.scheduler != nil && s.checkpointInterval > 0 {
		if err := s.scheduler.ScheduleEvery(s.checkpointInterval, func() {
			// nolint
			s.Checkpoint(context.Background())
		}); err != nil {
			return toTypedError(fmt.Errorf("failed to schedule checkpoints: %w", err))
		}
		s.scheduler.Start()
		log.Debugf(
			"scheduled checkpoint every %d %s", s.checkpointInterval, s.scheduler.Unit(),
		)
	}
	return nil
}

func (s *service) Stop() {
	ctx := context.Background()

	if s.scheduler != nil && s.checkpointInterval > 0 {
		s.scheduler.Stop()
		log.Debug("stopped scheduler")
	}
	if err := s.Checkpoint(ctx); err != nil {
		log.WithError(err).Warn("failed to checkpoint deposit index on shutdown")
	}
	s.repoManager.Close()
	log.Debug("closed connection to db")
	if s.liveStore != nil {
		s.liveStore.Close()
		log.Debug("closed connection to live store")
	}
	if s.publisher != nil {
		s.publisher.Close()
		log.Debug("closed event publisher")
	}
}

func (s *service) PushBlock(
	ctx context.Context, height uint32, amount int64,
) (*IndexInfo, errors.Error) {
	s.lock.Lock()
	if err := s.validateNextBlock(height, amount); err != nil {
		s.lock.Unlock()
		return nil, err
	}
	return s.pushBlock(ctx, height, amount, ""), nil
}

func (s *service) ApplyBlock(
	ctx context.Context, block domain.BlockDeposits,
) (*IndexInfo, errors.Error) {
	if block.Locked < 0 || block.Unlocked < 0 {
		return nil, errors.INVALID_ARGUMENT.New(
			"locked and unlocked amounts must not be negative",
		).WithMetadata(map[string]any{"locked": block.Locked, "unlocked": block.Unlocked})
	}

	s.lock.Lock()
	current, delta := s.index.FullDepositAmount(), block.Delta()
	if delta > 0 && current > math.MaxInt64-delta {
		s.lock.Unlock()
		return nil, errors.INVALID_ARGUMENT.New(
			"deposit total overflows at height %d", block.Height,
		).WithMetadata(map[string]any{"current": current, "delta": delta})
	}
	amount := current + delta
	if err := s.validateNextBlock(block.Height, amount); err != nil {
		s.lock.Unlock()
		return nil, err
	}
	return s.pushBlock(ctx, block.Height, amount, block.Hash), nil
}

func (s *service) DisconnectBlock(ctx context.Context) (*IndexInfo, errors.Error) {
	s.lock.Lock()
	if err := s.index.PopBlock(); err != nil {
		s.lock.Unlock()
		return nil, toTypedError(err)
	}
	s.revision++
	if s.metrics != nil {
		s.metrics.IncBlocksPopped(1)
	}

	log.Debugf("disconnected block %d from deposit index", s.index.Size())
	info := s.info()
	s.unlockAndNotify(ctx, s.event(domain.EventBlockPopped, info.Size, 1, ""))
	return info, nil
}

func (s *service) Rollback(ctx context.Context, from uint32) (uint32, errors.Error) {
	s.lock.Lock()
	removed := s.index.PopBlocks(from)
	if removed == 0 {
		log.Debugf(
			"rollback to %d is a no-op, deposit index size is %d", from, s.index.Size(),
		)
		s.lock.Unlock()
		return 0, nil
	}
	s.revision++
	if s.metrics != nil {
		s.metrics.IncBlocksPopped(removed)
		s.metrics.IncRollbacks()
	}

	log.WithFields(log.Fields{
		"from":    from,
		"removed": removed,
	}).Info("rolled back deposit index")
	if s.alertRollbackDepth > 0 && removed >= s.alertRollbackDepth {
		s.alert(ports.DeepRollback, ports.RollbackAlert{
			Index:      s.name,
			From:       from,
			Removed:    removed,
			Size:       s.index.Size(),
			FullAmount: s.index.FullDepositAmount(),
		})
	}
	s.unlockAndNotify(ctx, s.event(domain.EventBlocksRolledBack, from, removed, ""))
	return removed, nil
}

func (s *service) GetDepositAmountAtHeight(_ context.Context, height uint32) int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.index.DepositAmountAtHeight(height)
}

func (s *service) GetFullDepositAmount(_ context.Context) int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.index.FullDepositAmount()
}

func (s *service) GetEntries(_ context.Context) []domain.DepositIndexEntry {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.index.Entries()
}

func (s *service) GetInfo(_ context.Context) *IndexInfo {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.info()
}

// Checkpoint persists the index if it changed since the last checkpoint.
func (s *service) Checkpoint(ctx context.Context) errors.Error {
	s.checkpointLock.Lock()
	defer s.checkpointLock.Unlock()

	s.lock.RLock()
	if s.revision == s.savedRevision {
		s.lock.RUnlock()
		return nil
	}
	snapshot := s.index.Clone()
	revision := s.revision
	s.lock.RUnlock()

	start := time.Now()
	err := s.repoManager.DepositIndexes().Upsert(ctx, s.name, snapshot)
	if s.metrics != nil {
		s.metrics.ObserveCheckpoint(time.Since(start).Seconds(), snapshot.EntryCount(), err)
	}
	if err != nil {
		log.WithError(err).Warnf("failed to checkpoint deposit index %s", s.name)
		s.alert(ports.CheckpointFailed, ports.CheckpointFailedAlert{
			Index: s.name,
			Size:  snapshot.Size(),
			Error: err.Error(),
		})
		return toTypedError(fmt.Errorf("failed to checkpoint deposit index: %w", err))
	}

	s.lock.Lock()
	s.savedRevision = revision
	s.lastCheckpointAt = time.Now().Unix()
	s.lock.Unlock()

	log.Debugf(
		"checkpointed deposit index %s at size %d (%d entries)",
		s.name, snapshot.Size(), snapshot.EntryCount(),
	)
	return nil
}

func (s *service) ExportSnapshot(_ context.Context) ([]byte, errors.Error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	data, err := s.index.MarshalBinary()
	if err != nil {
		return nil, toTypedError(err)
	}
	return data, nil
}

// ImportSnapshot replaces the whole index. The current index is kept if data
// cannot be decoded.
func (s *service) ImportSnapshot(ctx context.Context, data []byte) errors.Error {
	imported := domain.NewDepositIndex()
	if err := imported.UnmarshalBinary(data); err != nil {
		return toTypedError(err)
	}
	imported.Reserve(s.expectedHeight)

	s.lock.Lock()
	s.index = imported
	s.revision++

	log.WithFields(log.Fields{
		"size":    imported.Size(),
		"entries": imported.EntryCount(),
	}).Info("imported deposit index snapshot")
	s.unlockAndNotify(ctx, s.event(domain.EventIndexImported, imported.Size(), 0, ""))
	return nil
}

func (s *service) validateNextBlock(height uint32, amount int64) errors.Error {
	if s.index.Size() == math.MaxUint32 {
		return errors.INVALID_BLOCK_HEIGHT.New(
			"deposit index is full at height %d", s.index.Size(),
		).WithMetadata(errors.BlockHeightMetadata{
			ExpectedHeight: s.index.Size(), GotHeight: height,
		})
	}
	if expected := s.index.Size(); height != expected {
		return errors.INVALID_BLOCK_HEIGHT.New(
			"expected block at height %d, got %d", expected, height,
		).WithMetadata(errors.BlockHeightMetadata{ExpectedHeight: expected, GotHeight: height})
	}
	if amount < 0 {
		return errors.NEGATIVE_DEPOSIT_AMOUNT.New(
			"deposit total at height %d would be negative (%d)", height, amount,
		).WithMetadata(errors.NegativeAmountMetadata{Height: height, Amount: amount})
	}
	return nil
}

// must be called with the write lock held, releases it.
func (s *service) pushBlock(
	ctx context.Context, height uint32, amount int64, hash string,
) *IndexInfo {
	s.index.PushBlock(amount)
	s.revision++
	if s.metrics != nil {
		s.metrics.IncBlocksPushed()
	}

	log.WithFields(log.Fields{
		"height": height,
		"amount": amount,
	}).Debug("pushed block to deposit index")
	info := s.info()
	s.unlockAndNotify(ctx, s.event(domain.EventBlockPushed, height, 0, hash))
	return info
}

// event must be called with the write lock held.
func (s *service) event(
	eventType domain.EventType, height, removed uint32, hash string,
) *domain.IndexEvent {
	return &domain.IndexEvent{
		Type:      eventType,
		Index:     s.name,
		Height:    height,
		Removed:   removed,
		BlockHash: hash,
	}
}

// unlockAndNotify releases the write lock, then mirrors the tip to the live
// store and publishes the event. Failures only get logged.
func (s *service) unlockAndNotify(ctx context.Context, event *domain.IndexEvent) {
	tip := domain.NewTip(s.name, s.index)
	if s.metrics != nil {
		s.metrics.ObserveTip(tip)
	}

	ticket := s.notifySeq
	s.notifySeq++
	s.lock.Unlock()

	s.notifyCond.L.Lock()
	for s.notifyTurn != ticket {
		s.notifyCond.Wait()
	}
	s.notifyCond.L.Unlock()
	defer func() {
		s.notifyCond.L.Lock()
		s.notifyTurn++
		s.notifyCond.L.Unlock()
		s.notifyCond.Broadcast()
	}()

	if s.liveStore != nil {
		if err := s.liveStore.SetTip(ctx, tip); err != nil {
			log.WithError(err).Warn("failed to update deposit index tip in live store")
		}
	}
	if event == nil || s.publisher == nil {
		return
	}
	event.Size = tip.Size
	event.FullAmount = tip.FullAmount
	event.Timestamp = tip.UpdatedAt
	if err := s.publisher.Publish(ctx, *event); err != nil {
		log.WithError(err).Warnf("failed to publish %s event", event.Type)
	}
}

// alert is fire and forget, delivery retries must not hold the index lock.
func (s *service) alert(topic ports.Topic, message any) {
	if s.alerts == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := s.alerts.Publish(ctx, topic, message); err != nil {
			log.WithError(err).Warnf("failed to send %s alert", topic)
		}
	}()
}

func (s *service) info() *IndexInfo {
	info := &IndexInfo{
		Name:               s.name,
		Size:               s.index.Size(),
		Entries:            s.index.EntryCount(),
		FullDepositAmount:  s.index.FullDepositAmount(),
		Dirty:              s.revision != s.savedRevision,
		LastCheckpointAt:   s.lastCheckpointAt,
		CheckpointInterval: s.checkpointInterval,
	}
	if s.scheduler != nil {
		info.CheckpointUnit = s.scheduler.Unit().String()
	}
	return info
}

func toTypedError(err error) errors.Error {
	var typed errors.Error
	if stderrors.As(err, &typed) {
		return typed
	}
	return errors.INTERNAL_ERROR.Wrap(err)
}
