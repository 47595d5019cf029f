package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"interviewroom-backend/internal/database"
)

// ClockRepository persists session clock start instants in Redis
type ClockRepository struct {
	client *database.RedisClient
}

// NewClockRepository creates a new ClockRepository
func NewClockRepository(client *database.RedisClient) *ClockRepository {
	return &ClockRepository{client: client}
}

// clockState is the stored value for one session
type clockState struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}

func clockKey(sessionID string) string {
	return fmt.Sprintf("interview:clock:%s", sessionID)
}

// SaveStart stores the start instant with the given TTL
func (r *ClockRepository) SaveStart(ctx context.Context, sessionID string, start time.Time, ttl time.Duration) error {
	data, err := encodeClockState(sessionID, start)
	if err != nil {
		return err
	}

	if err := r.client.SafeSet(ctx, clockKey(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save clock start: %w", err)
	}
	return nil
}

// LoadStart retrieves the start instant for a session
func (r *ClockRepository) LoadStart(ctx context.Context, sessionID string) (time.Time, bool, error) {
	data, err := r.client.SafeGet(ctx, clockKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to load clock start: %w", err)
	}

	state, err := decodeClockState(data)
	if err != nil {
		return time.Time{}, false, err
	}
	return state.StartedAt, true, nil
}

// ClearStart removes the start instant for a session
func (r *ClockRepository) ClearStart(ctx context.Context, sessionID string) error {
	if err := r.client.SafeDel(ctx, clockKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear clock start: %w", err)
	}
	return nil
}

func encodeClockState(sessionID string, start time.Time) ([]byte, error) {
	data, err := json.Marshal(clockState{SessionID: sessionID, StartedAt: start.UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal clock state: %w", err)
	}
	return data, nil
}

func decodeClockState(data string) (clockState, error) {
	var state clockState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return clockState{}, fmt.Errorf("failed to unmarshal clock state: %w", err)
	}
	return state, nil
}
