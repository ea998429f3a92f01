package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/util/ratelimiter"
)

// AdminHandler exposes sync and folder cache operations
type AdminHandler struct {
	syncer  Syncer
	folders Folders
	limiter *ratelimiter.Keyed
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(syncer Syncer, folders Folders, limiter *ratelimiter.Keyed, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		syncer:  syncer,
		folders: folders,
		limiter: limiter,
		logger:  logger,
	}
}

// syncResponse is returned by the sync endpoints
type syncResponse struct {
	Runs  []*domain.SyncRun `json:"runs"`
	Error string            `json:"error,omitempty"`
}

func isDryRun(r *http.Request) bool {
	v := r.URL.Query().Get("dry_run")
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// throttled writes 429 when a manual sync of key ran too recently. Dry runs
// are never throttled.
func (h *AdminHandler) throttled(w http.ResponseWriter, key string, dryRun bool) bool {
	if dryRun {
		return false
	}
	ok, wait := h.limiter.Allow(key)
	if ok {
		return false
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	writeError(w, http.StatusTooManyRequests, "sync was triggered recently, retry later")
	return true
}

// HandleSync runs one entity type
func (h *AdminHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	entityType := r.PathValue("type")
	dryRun := isDryRun(r)

	if h.throttled(w, entityType, dryRun) {
		return
	}

	run, err := h.syncer.Sync(r.Context(), entityType, dryRun)
	resp := syncResponse{}
	if run != nil {
		resp.Runs = []*domain.SyncRun{run}
	}
	if err != nil {
		h.logger.Warn("manual sync failed", zap.String("entity_type", entityType), zap.Error(err))
		resp.Error = err.Error()
		setRetryAfter(w, err)
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSyncAll runs every entity type
func (h *AdminHandler) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	dryRun := isDryRun(r)

	if h.throttled(w, "*", dryRun) {
		return
	}

	runs, err := h.syncer.SyncAll(r.Context(), dryRun, nil)
	resp := syncResponse{Runs: runs}
	if err != nil {
		h.logger.Warn("manual sync of all types failed", zap.Error(err))
		resp.Error = err.Error()
		setRetryAfter(w, err)
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRuns lists run history. Query: type, limit.
func (h *AdminHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.syncer.Runs(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// HandleFolderStatus lists cached folders and overrides
func (h *AdminHandler) HandleFolderStatus(w http.ResponseWriter, r *http.Request) {
	entries, err := h.folders.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to read folder cache", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read folder cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": entries})
}

// HandleFolderRefresh rediscovers every media folder
func (h *AdminHandler) HandleFolderRefresh(w http.ResponseWriter, r *http.Request) {
	folders, err := h.folders.DiscoverAll(r.Context())
	if err != nil {
		h.logger.Warn("folder refresh failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discovered": len(folders)})
}

// HandleFolderClear drops discovered folders, keeping overrides
func (h *AdminHandler) HandleFolderClear(w http.ResponseWriter, r *http.Request) {
	n, err := h.folders.Clear(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
}

// HandleSetOverride pins a folder name to an id. Body: {"id": "..."}
func (h *AdminHandler) HandleSetOverride(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := r.PathValue("name")
	if err := h.folders.SetOverride(r.Context(), name, body.ID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.logger.Info("folder override set", zap.String("folder", name), zap.String("folder_id", body.ID))
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteOverride removes a folder override
func (h *AdminHandler) HandleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.folders.DeleteOverride(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps domain errors to HTTP status codes
// setRetryAfter passes on the wait Graph asked for when it throttled the run
func setRetryAfter(w http.ResponseWriter, err error) {
	if wait, ok := domain.GetRetryAfter(err); ok && wait > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownEntityType), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict
	case domain.IsRetryable(err):
		return http.StatusServiceUnavailable
	case domain.IsAuthError(err), domain.IsListResolutionError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
