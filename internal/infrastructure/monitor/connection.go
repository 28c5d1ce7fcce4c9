package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flowboard/backend/internal/infrastructure/outbox"
)

const (
	postgresProbeTimeout = 3 * time.Second
	redisProbeTimeout    = 2 * time.Second
)

// Monitor polls the core dependencies on a fixed interval and caches
// the result. The health endpoint and the outbox processor read the
// cached view instead of probing the stores on every request.
type Monitor struct {
	pg     *pgxpool.Pool
	redis  *redislib.Client
	outbox *outbox.Store

	interval time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	status Status

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(pg *pgxpool.Pool, redis *redislib.Client, out *outbox.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		outbox:   out,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start probes once synchronously so the first health request never
// sees a zero-value status, then keeps refreshing in the background.
func (m *Monitor) Start() {
	m.refresh()
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.refresh()
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether both primary stores answered the last probe.
func (m *Monitor) IsOnline() bool {
	status := m.GetStatus()
	return status.PostgreSQL && status.Redis
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) refresh() {
	next := Status{LastCheck: time.Now()}
	next.PostgreSQL = m.probePostgres()
	next.Redis = m.probeRedis()
	next.Outbox, next.OutboxSize = m.probeOutbox()

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()

	if prev.PostgreSQL && !next.PostgreSQL {
		m.logger.Warn("postgres went unreachable")
	}
	if prev.Redis && !next.Redis {
		m.logger.Warn("redis went unreachable")
	}
}

func (m *Monitor) probePostgres() bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresProbeTimeout)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) probeRedis() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) probeOutbox() (bool, int) {
	if m.outbox == nil {
		return false, 0
	}
	size, err := m.outbox.Size()
	if err != nil {
		m.logger.Warn("outbox size probe failed", zap.Error(err))
		return false, 0
	}
	return true, size
}
