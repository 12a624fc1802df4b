package handler

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"pd-shop-api/internal/cache"
	"pd-shop-api/internal/model"
	"pd-shop-api/internal/repository"
	"pd-shop-api/pkg/apierror"
	"pd-shop-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	itemRepo     repository.ItemRepository
	statsRepo    repository.StatsRepository
	activityRepo repository.ActivityRecorder
	redisBuffer  *cache.RedisActivityBuffer
	docstoreType string
	startTime    time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	itemRepo repository.ItemRepository,
	statsRepo repository.StatsRepository,
	activityRepo repository.ActivityRecorder,
	redisBuffer *cache.RedisActivityBuffer,
	docstoreType string,
) *AdminHandler {
	return &AdminHandler{
		itemRepo:     itemRepo,
		statsRepo:    statsRepo,
		activityRepo: activityRepo,
		redisBuffer:  redisBuffer,
		docstoreType: docstoreType,
		startTime:    time.Now(),
	}
}

// AddItem handles POST /api/v1/admin/items
func (h *AdminHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var item model.ShopItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	if item.Name == "" {
		response.Error(w, apierror.ValidationError("invalid item", apierror.FieldError{
			Field: "name", Message: "name is required",
		}))
		return
	}

	id, err := h.itemRepo.AddItem(r.Context(), item)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to add item"))
		return
	}

	response.Created(w, map[string]string{"id": id})
}

// SetItem handles PUT /api/v1/admin/items/{item_id}
func (h *AdminHandler) SetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item_id is required"))
		return
	}

	var item model.ShopItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	if err := h.itemRepo.SetItem(r.Context(), itemID, item); err != nil {
		response.Error(w, apierror.InternalError("failed to save item"))
		return
	}

	response.OK(w, map[string]string{"id": itemID, "status": "saved"})
}

// GetShopStats handles GET /api/v1/admin/shop-stats
func (h *AdminHandler) GetShopStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsRepo.GetOrCreateStats(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load shop stats"))
		return
	}

	response.OK(w, stats)
}

// ClaimSales handles POST /api/v1/admin/shop-stats/claim
// Returns the unclaimed total as of the read and zeroes it. A sale landing
// between the read and the reset stays unclaimed for the next claim.
func (h *AdminHandler) ClaimSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.statsRepo.GetOrCreateStats(ctx)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load shop stats"))
		return
	}

	if err := h.statsRepo.ResetUnclaimedUsdSales(ctx); err != nil {
		response.Error(w, apierror.InternalError("failed to reset unclaimed sales"))
		return
	}

	response.OK(w, map[string]interface{}{
		"claimed": stats.UnclaimedUsdSales,
	})
}

// ListActivity handles GET /api/v1/admin/activity?year=2026&month=8
func (h *AdminHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	year := now.Year()
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			response.Error(w, apierror.BadRequest("year must be a number"))
			return
		}
		year = parsed
	}

	month := now.Month()
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 12 {
			response.Error(w, apierror.BadRequest("month must be 1-12"))
			return
		}
		month = time.Month(parsed)
	}

	activities, err := h.activityRepo.ListMonth(r.Context(), year, month)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load activity"))
		return
	}

	response.OK(w, map[string]interface{}{
		"year":       year,
		"month":      int(month),
		"activities": activities,
		"count":      len(activities),
	})
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["docstore_type"] = h.docstoreType

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

	// Redis buffer stats
	if h.redisBuffer != nil {
		count, err := h.redisBuffer.Count(ctx)
		if err == nil {
			stats["redis_buffer"] = map[string]interface{}{
				"pending_activities": count,
				"status":             "connected",
			}
		} else {
			stats["redis_buffer"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["redis_buffer"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
