package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/repository"
	"patrimonio-api/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	items     repository.ItemRepository
	users     repository.UserRepository
	monitor   StoreMonitor
	storeType string // google, excel, sqlite, mysql, postgres
	mediaType string
	startTime time.Time
	log       logrus.FieldLogger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	items repository.ItemRepository,
	users repository.UserRepository,
	monitor StoreMonitor,
	storeType, mediaType string,
	logger logrus.FieldLogger,
) *AdminHandler {
	return &AdminHandler{
		items:     items,
		users:     users,
		monitor:   monitor,
		storeType: storeType,
		mediaType: mediaType,
		startTime: time.Now(),
		log:       logger.WithField("component", "admin-handler"),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType
	stats["media_type"] = h.mediaType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	// Store stats
	store := map[string]interface{}{"health": h.monitor.Status()}
	if n, err := h.items.Count(ctx); err == nil {
		store["items"] = n
	} else {
		h.log.WithError(err).Warn("Failed to count items")
		store["items_error"] = toAPIError(err).Code
	}
	if n, err := h.users.Count(ctx); err == nil {
		store["users"] = n
	} else {
		h.log.WithError(err).Warn("Failed to count users")
		store["users_error"] = toAPIError(err).Code
	}
	stats["store"] = store

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
