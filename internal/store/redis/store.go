package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/railmeter/railmeter/internal/epoch"
)

// Store persists the billing engine state in Redis.
//
// Snapshots carry no TTL: billing state must never expire, only be replaced
// by a newer snapshot.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis state store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// SaveState writes all state pieces in a single pipeline.
func (s *Store) SaveState(ctx context.Context, state *State) error {
	uptimeData, err := json.Marshal(state.Uptime)
	if err != nil {
		return fmt.Errorf("failed to marshal uptime snapshot: %w", err)
	}
	lifecycleData, err := json.Marshal(state.Lifecycle)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle snapshot: %w", err)
	}
	paymentsData, err := json.Marshal(state.Payments)
	if err != nil {
		return fmt.Errorf("failed to marshal payments snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, KeyEpoch, strconv.FormatUint(uint64(state.Epoch), 10), 0)
	pipe.Set(ctx, KeyUptime, uptimeData, 0)
	pipe.Set(ctx, KeyLifecycle, lifecycleData, 0)
	pipe.Set(ctx, KeyPayments, paymentsData, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// LoadState reads the persisted state. Returns (nil, nil) when no snapshot
// has ever been written, which callers treat as a fresh start.
func (s *Store) LoadState(ctx context.Context) (*State, error) {
	epochRaw, err := s.client.Get(ctx, KeyEpoch).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load epoch: %w", err)
	}
	current, err := strconv.ParseUint(epochRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt epoch value %q: %w", epochRaw, err)
	}

	state := &State{Epoch: epoch.Epoch(current)}
	if err := s.loadJSON(ctx, KeyUptime, &state.Uptime); err != nil {
		return nil, err
	}
	if err := s.loadJSON(ctx, KeyLifecycle, &state.Lifecycle); err != nil {
		return nil, err
	}
	if err := s.loadJSON(ctx, KeyPayments, &state.Payments); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) loadJSON(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("state key %s missing while %s exists: partial snapshot", key, KeyEpoch)
		}
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
