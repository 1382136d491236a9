// Package lock provides named lease-based mutual exclusion so a scheduled
// job runs on at most one node at a time. Leases expire on their own after
// the maximum hold time, so a crashed holder cannot wedge a job forever.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"onboard/internal/platform/redis"
)

// Releaser releases a held lease. Releasing a lease that already expired is
// a no-op.
type Releaser func(ctx context.Context) error

// Service hands out named leases.
type Service interface {
	// Acquire attempts to take the named lease for at most maxHold.
	// Returns acquired=false without error when another holder owns it.
	Acquire(ctx context.Context, name string, maxHold time.Duration) (release Releaser, acquired bool, err error)
}

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisService struct {
	client *redis.Client
}

// NewRedis builds a lease service backed by Redis.
func NewRedis(client *redis.Client) Service {
	return &redisService{client: client}
}

func (s *redisService) Acquire(ctx context.Context, name string, maxHold time.Duration) (Releaser, bool, error) {
	token := uuid.NewString()
	key := "lock:" + name
	ok, err := s.client.SetNX(ctx, key, token, maxHold).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, s.client, []string{key}, token).Err()
	}
	return release, true, nil
}

type memoryService struct {
	mu     sync.Mutex
	leases map[string]memoryLease
}

type memoryLease struct {
	token   string
	expires time.Time
}

// NewMemory builds an in-process lease service for single-node deployments
// and tests.
func NewMemory() Service {
	return &memoryService{leases: make(map[string]memoryLease)}
}

func (s *memoryService) Acquire(_ context.Context, name string, maxHold time.Duration) (Releaser, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if lease, ok := s.leases[name]; ok && lease.expires.After(now) {
		return nil, false, nil
	}
	token := uuid.NewString()
	s.leases[name] = memoryLease{token: token, expires: now.Add(maxHold)}
	release := func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if lease, ok := s.leases[name]; ok && lease.token == token {
			delete(s.leases, name)
		}
		return nil
	}
	return release, true, nil
}
