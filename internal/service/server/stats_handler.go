package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// StatsHandler reports store and storage statistics
type StatsHandler struct {
	store  Store
	usage  port.UsageReporter
	logger *zap.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(store Store, usage port.UsageReporter, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		store:  store,
		usage:  usage,
		logger: logger,
	}
}

// HandleStats handles statistics requests
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get store stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get store stats")
		return
	}

	response := map[string]any{
		"stats": stats,
	}
	if h.usage != nil {
		usage, err := h.usage.GetDiskUsage()
		if err != nil {
			h.logger.Warn("failed to get disk usage", zap.Error(err))
		} else {
			response["disk"] = usage
		}
		if sized, ok := h.usage.(interface{ GetSize() (int64, error) }); ok {
			if size, err := sized.GetSize(); err == nil {
				response["blob_bytes"] = size
			}
		}
	}

	writeJSON(w, http.StatusOK, response)
}
