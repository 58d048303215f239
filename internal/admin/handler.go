// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/notify"
)

const pingTimeout = 3 * time.Second

// OpsConfig wires the backing services whose health the ops routes report.
// Any field may be nil; the matching section is then omitted.
type OpsConfig struct {
	DBStats       func() sql.DBStats
	DBPing        func(ctx context.Context) error
	RedisStats    func() *redis.PoolStats
	RedisPing     func(ctx context.Context) error
	Notifications func() notify.DispatcherStats
	StartedAt     time.Time
}

type OpsHandler struct {
	cfg OpsConfig
}

func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	return &OpsHandler{cfg: cfg}
}

func (h *OpsHandler) RegisterRoutes(
	r chi.Router,
	operators func(http.Handler) http.Handler,
) {
	r.Route("/admin/ops", func(r chi.Router) {
		r.Use(operators)

		r.Get("/", h.Overview)
		r.Get("/notifications", h.NotificationStats)
		r.Get("/runtime", h.RuntimeStats)
	})
}

func (h *OpsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	res := OverviewResponse{
		Uptime:  time.Since(h.cfg.StartedAt).Round(time.Second).String(),
		Runtime: readRuntime(),
	}

	var g errgroup.Group
	g.Go(func() error {
		if h.cfg.DBPing != nil || h.cfg.DBStats != nil {
			res.Database = &DatabaseStatus{
				Healthy: ping(ctx, h.cfg.DBPing),
				Pool:    h.dbPool(),
			}
		}
		return nil
	})
	g.Go(func() error {
		if h.cfg.RedisPing != nil || h.cfg.RedisStats != nil {
			res.Redis = &RedisStatus{
				Healthy: ping(ctx, h.cfg.RedisPing),
				Pool:    h.redisPool(),
			}
		}
		return nil
	})
	_ = g.Wait()

	if h.cfg.Notifications != nil {
		stats := h.cfg.Notifications()
		res.Notifications = &stats
	}

	core.OK(w, res)
}

func (h *OpsHandler) NotificationStats(w http.ResponseWriter, _ *http.Request) {
	if h.cfg.Notifications == nil {
		core.NotFound(w, "notification dispatcher")
		return
	}
	core.OK(w, h.cfg.Notifications())
}

func (h *OpsHandler) RuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntime())
}

func (h *OpsHandler) dbPool() *DBPoolStats {
	if h.cfg.DBStats == nil {
		return nil
	}

	stats := h.cfg.DBStats()
	return &DBPoolStats{
		MaxOpen:      stats.MaxOpenConnections,
		Open:         stats.OpenConnections,
		InUse:        stats.InUse,
		Idle:         stats.Idle,
		WaitCount:    stats.WaitCount,
		WaitDuration: stats.WaitDuration.String(),
	}
}

func (h *OpsHandler) redisPool() *RedisPoolStats {
	if h.cfg.RedisStats == nil {
		return nil
	}

	stats := h.cfg.RedisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

func ping(ctx context.Context, fn func(context.Context) error) bool {
	if fn == nil {
		return false
	}
	return fn(ctx) == nil
}

func readRuntime() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		HeapAlloc:    mem.HeapAlloc,
		NumGC:        mem.NumGC,
	}
}

type OverviewResponse struct {
	Uptime        string                  `json:"uptime"`
	Database      *DatabaseStatus         `json:"database,omitempty"`
	Redis         *RedisStatus            `json:"redis,omitempty"`
	Notifications *notify.DispatcherStats `json:"notifications,omitempty"`
	Runtime       RuntimeStats            `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Pool    *DBPoolStats `json:"pool,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Pool    *RedisPoolStats `json:"pool,omitempty"`
}

type DBPoolStats struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	HeapAlloc    uint64 `json:"heap_alloc_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
