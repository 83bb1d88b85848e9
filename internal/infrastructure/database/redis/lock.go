package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "lock is held by another owner")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Mutex is a single-owner lock on one key.  While held, a watchdog keeps
// extending it every ttl/3.
type Mutex struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
	logger logging.Logger

	mu      sync.Mutex
	stopDog context.CancelFunc
	dogDone chan struct{}
}

// NewMutex returns an unlocked mutex on prefix+"lock:"+name.
func NewMutex(client *Client, prefix, name string, ttl time.Duration, log logging.Logger) *Mutex {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Mutex{
		client: client,
		key:    prefix + "lock:" + name,
		token:  uuid.NewString(),
		ttl:    ttl,
		logger: log,
	}
}

func (m *Mutex) Key() string { return m.key }

// TryLock acquires the lock without waiting.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	rdb := m.client.Raw()
	if rdb == nil {
		return false, ErrClientClosed
	}
	ok, err := rdb.SetNX(ctx, m.key, m.token, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "lock acquire failed")
	}
	if ok {
		m.startWatchdog()
	}
	return ok, nil
}

func (m *Mutex) Unlock(ctx context.Context) error {
	m.stopWatchdog()
	rdb := m.client.Raw()
	if rdb == nil {
		return ErrClientClosed
	}
	n, err := unlockScript.Run(ctx, rdb, []string{m.key}, m.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "lock release failed")
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend resets the expiry if the lock is still ours.
func (m *Mutex) Extend(ctx context.Context) (bool, error) {
	rdb := m.client.Raw()
	if rdb == nil {
		return false, ErrClientClosed
	}
	n, err := extendScript.Run(ctx, rdb, []string{m.key}, m.token, m.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (m *Mutex) startWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	m.stopDog = cancel
	m.dogDone = make(chan struct{})
	go m.watchdog(ctx, m.dogDone)
}

func (m *Mutex) stopWatchdog() {
	m.mu.Lock()
	cancel, done := m.stopDog, m.dogDone
	m.stopDog, m.dogDone = nil, nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *Mutex) watchdog(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := m.Extend(ctx)
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Error("lock watchdog failed to extend", logging.String("key", m.key), logging.Err(err))
				}
				return
			}
			if !ok {
				m.logger.Warn("lock watchdog lost lock", logging.String("key", m.key))
				return
			}
		}
	}
}

// WithLock runs fn while holding the named lock.  It returns
// ErrLockNotAcquired without running fn when another owner holds it.
func WithLock(ctx context.Context, m *Mutex, fn func(context.Context) error) error {
	ok, err := m.TryLock(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotAcquired
	}
	defer func() {
		if err := m.Unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("lock release failed", logging.String("key", m.key), logging.Err(err))
		}
	}()
	return fn(ctx)
}
