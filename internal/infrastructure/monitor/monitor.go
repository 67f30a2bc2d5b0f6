// Package monitor watches the datastores the progress pipeline depends on.
// The event buffer drain only runs while both Postgres and Redis answer
// pings, so buffered diary events are not burned through retries during an
// outage they cannot survive.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/moodlog/backend/internal/infrastructure/buffer"
	"github.com/moodlog/backend/internal/metrics"
)

// Status is one health snapshot.
type Status struct {
	Postgres    bool      `json:"postgres"`
	Redis       bool      `json:"redis"`
	Buffer      bool      `json:"buffer"`
	BufferDepth int       `json:"buffer_depth"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Online reports whether the primary stores are both reachable. The local
// buffer is deliberately excluded: a broken buffer must not stop live
// progress updates.
func (s Status) Online() bool {
	return s.Postgres && s.Redis
}

// Monitor pings the dependencies on an interval and keeps the latest
// snapshot. Transitions between online and offline are logged once, not on
// every tick.
type Monitor struct {
	pg       *pgxpool.Pool
	redis    *redislib.Client
	queue    *buffer.Queue
	interval time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	status Status

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(pg *pgxpool.Pool, redis *redislib.Client, queue *buffer.Queue, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		queue:    queue,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports the latest snapshot's verdict on the primary stores.
func (m *Monitor) IsOnline() bool {
	return m.Snapshot().Online()
}

// Snapshot returns the latest health check result.
func (m *Monitor) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh()
	for {
		select {
		case <-ticker.C:
			m.refresh()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) refresh() {
	next := Status{
		Postgres:  m.pingPostgres(),
		Redis:     m.pingRedis(),
		CheckedAt: time.Now(),
	}
	next.Buffer, next.BufferDepth = m.probeBuffer()

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()

	metrics.BufferedEvents.Set(float64(next.BufferDepth))

	if prev.Online() && !next.Online() {
		m.logger.Warn("datastores went offline, diary events will be buffered",
			zap.Bool("postgres", next.Postgres),
			zap.Bool("redis", next.Redis))
	}
	if !prev.Online() && next.Online() && !prev.CheckedAt.IsZero() {
		m.logger.Info("datastores back online",
			zap.Int("buffered_events", next.BufferDepth))
	}
}

func (m *Monitor) pingPostgres() bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) pingRedis() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) probeBuffer() (bool, int) {
	if m.queue == nil {
		return false, 0
	}
	depth, err := m.queue.Size()
	if err != nil {
		m.logger.Warn("buffer depth check failed", zap.Error(err))
		return false, depth
	}
	return true, depth
}
