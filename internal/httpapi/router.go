// Package httpapi exposes the worker's health surface.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"farmhand/internal/pkg/logger"
	"farmhand/internal/ports"
)

type Deps struct {
	Pool *pgxpool.Pool
	RDB  *redis.Client
	SP   ports.StorageProvider
	Log  *logger.Logger
}

type handler struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	sp   ports.StorageProvider
	log  *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	h := &handler{
		pool: d.Pool,
		rdb:  d.RDB,
		sp:   d.SP,
		log:  log.WithComponent("httpapi"),
	}

	r := chi.NewRouter()
	r.Get("/health", h.health)
	return r
}

// health reports basic liveness; `?deep=true` additionally pings the
// worker's dependencies.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":  "ok",
		"service": "farmhand-worker",
		"version": "0.1.0",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		// If any check failed, change status
		for _, check := range checks {
			if checkMap, ok := check.(map[string]any); ok {
				if checkMap["status"] != "ok" {
					health["status"] = "degraded"
					h.log.Warn("health check degraded", "checks", checks)
					break
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, health)
}

func (h *handler) deepHealthCheck(ctx context.Context) map[string]any {
	return map[string]any{
		"postgres": h.checkPostgres(ctx),
		"redis":    h.checkRedis(ctx),
		"storage":  h.checkStorage(ctx),
	}
}

func (h *handler) checkPostgres(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{
		"status": "ok",
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	} else {
		stats := h.pool.Stat()
		result["total_conns"] = stats.TotalConns()
		result["idle_conns"] = stats.IdleConns()
		result["acquired_conns"] = stats.AcquiredConns()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *handler) checkRedis(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{
		"status": "ok",
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.rdb.Ping(checkCtx).Err(); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *handler) checkStorage(_ context.Context) map[string]any {
	return map[string]any{
		"status":   "ok",
		"provider": h.sp.Provider(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
