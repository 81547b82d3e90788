// Package presence keeps short-lived online markers and last-seen timestamps in Redis.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL       = 5 * time.Minute
	onlineKeyPattern = "presence:online:%s"
	seenKeyPattern   = "presence:seen:%s"
)

var errMissingClient = errors.New("presence: redis client required")

// Status is the presence snapshot of a single user.
type Status struct {
	Online            bool
	LastSeenAtSeconds int64
}

// Tracker stores presence in Redis. Online markers expire after the configured
// TTL so a client that vanishes without saying goodbye drops offline on its own.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTracker wraps a Redis client; ttl <= 0 selects the default.
func NewTracker(client *redis.Client, ttl time.Duration) (*Tracker, error) {
	if client == nil {
		return nil, errMissingClient
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Tracker{client: client, ttl: ttl}, nil
}

// Touch records the user's current status and last-seen time.
func (t *Tracker) Touch(ctx context.Context, userID string, online bool, at time.Time) error {
	pipe := t.client.TxPipeline()
	onlineKey := fmt.Sprintf(onlineKeyPattern, userID)
	if online {
		pipe.Set(ctx, onlineKey, "1", t.ttl)
	} else {
		pipe.Del(ctx, onlineKey)
	}
	pipe.Set(ctx, fmt.Sprintf(seenKeyPattern, userID), at.UTC().Unix(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: touch %s: %w", userID, err)
	}
	return nil
}

// Lookup returns the known status for each id. Users Redis has never seen are omitted.
func (t *Tracker) Lookup(ctx context.Context, userIDs []string) (map[string]Status, error) {
	result := make(map[string]Status, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(userIDs)*2)
	for _, userID := range userIDs {
		keys = append(keys, fmt.Sprintf(onlineKeyPattern, userID))
	}
	for _, userID := range userIDs {
		keys = append(keys, fmt.Sprintf(seenKeyPattern, userID))
	}

	values, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: lookup: %w", err)
	}

	count := len(userIDs)
	for index, userID := range userIDs {
		onlineValue := values[index]
		seenValue := values[count+index]
		if onlineValue == nil && seenValue == nil {
			continue
		}
		status := Status{Online: onlineValue != nil}
		if raw, ok := seenValue.(string); ok {
			if parsed, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
				status.LastSeenAtSeconds = parsed
			}
		}
		result[userID] = status
	}
	return result, nil
}
