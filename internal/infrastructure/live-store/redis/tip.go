package redislivestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/internal/core/ports"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const tipKeyPrefix = "depositIndex:tip:"

type liveStore struct {
	rdb          *redis.Client
	numOfRetries int
	retryDelay   time.Duration
}

func NewLiveStore(rdb *redis.Client, numOfRetries int) ports.LiveStore {
	if numOfRetries <= 0 {
		numOfRetries = 1
	}
	return &liveStore{
		rdb:          rdb,
		numOfRetries: numOfRetries,
		retryDelay:   10 * time.Millisecond,
	}
}

// SetTip never moves the stored tip backwards in time, so a delayed write
// from an older mutation cannot overwrite a newer one.
func (s *liveStore) SetTip(ctx context.Context, tip domain.Tip) error {
	key := tipKey(tip.Name)
	val, err := json.Marshal(tip)
	if err != nil {
		return fmt.Errorf("failed to marshal tip of %s: %v", tip.Name, err)
	}

	for range s.numOfRetries {
		if err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			current, err := getTip(ctx, tx, key)
			if err != nil {
				return err
			}
			if current != nil && current.UpdatedAt > tip.UpdatedAt {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, val, 0)
				return nil
			})
			return err
		}, key); err == nil {
			return nil
		}
		time.Sleep(s.retryDelay)
	}
	return fmt.Errorf(
		"failed to set tip of %s after max number of retries: %v", tip.Name, err,
	)
}

func (s *liveStore) GetTip(ctx context.Context, name string) (*domain.Tip, error) {
	return getTip(ctx, s.rdb, tipKey(name))
}

func (s *liveStore) DeleteTip(ctx context.Context, name string) error {
	return s.rdb.Del(ctx, tipKey(name)).Err()
}

func (s *liveStore) Close() {
	if err := s.rdb.Close(); err != nil {
		log.WithError(err).Warn("failed to close redis client")
	}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getTip(ctx context.Context, rdb getter, key string) (*domain.Tip, error) {
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %v", key, err)
	}
	var tip domain.Tip
	if err := json.Unmarshal([]byte(val), &tip); err != nil {
		return nil, fmt.Errorf("malformed tip in storage %s: %v", key, err)
	}
	return &tip, nil
}

func tipKey(name string) string {
	return tipKeyPrefix + name
}
