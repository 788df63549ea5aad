package redis

import (
	"context"
	"fmt"
	"time"

	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ReplayStore implements ports.ReplayStore using Redis SET NX: binding an
// authenticated request to a server-assigned requestId so an identical
// signed payload cannot be replayed within the window (§4.1).
type ReplayStore struct {
	client *goredis.Client
	prefix string
}

// NewReplayStore creates a new Redis-backed replay store.
func NewReplayStore(client *goredis.Client) *ReplayStore {
	return &ReplayStore{
		client: client,
		prefix: "replay:",
	}
}

// CheckAndSet atomically checks whether requestID has been seen for teamID
// within ttl, recording it if not. Returns true if the request is new.
func (s *ReplayStore) CheckAndSet(ctx context.Context, teamID uuid.UUID, requestID string, ttl time.Duration) (bool, error) {
	key := s.prefix + teamID.String() + ":" + requestID
	ok, err := s.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis replay check: %w", err)
	}
	return ok, nil
}

var _ ports.ReplayStore = (*ReplayStore)(nil)
