package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-pushbullet-service/internal/dispatcher"
	"github.com/tinywideclouds/go-pushbullet-service/internal/targets"
)

// Notifier is the dispatcher surface exposed over HTTP.
type Notifier interface {
	Send(ctx context.Context, req dispatcher.Request) (dispatcher.Report, error)
	Refresh(ctx context.Context) error
	Targets() targets.Snapshot
}

type NotifyAPI struct {
	Notifier Notifier
	Logger   *slog.Logger
}

func NewNotifyAPI(notifier Notifier, logger *slog.Logger) *NotifyAPI {
	return &NotifyAPI{
		Notifier: notifier,
		Logger:   logger.With("component", "NotifyAPI"),
	}
}

// Notify handles POST /api/v1/notify. Per-target failures are reported in
// the body of a 202; only a failed broadcast maps to 502.
func (api *NotifyAPI) Notify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dispatcher.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing message")
		return
	}

	log := api.Logger
	if caller, ok := middleware.GetUserHandleFromContext(ctx); ok {
		log = log.With("caller", caller)
	}

	report, err := api.Notifier.Send(ctx, req)
	if err != nil {
		log.Error("Notify: broadcast failed", "request_id", report.RequestID, "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "notification delivery failed")
		return
	}
	log.Debug("Notify: request processed", "request_id", report.RequestID, "delivered", report.Delivered())

	writeJSON(w, http.StatusAccepted, report)
}

// ListTargets handles GET /api/v1/targets.
func (api *NotifyAPI) ListTargets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.Notifier.Targets())
}

// RefreshTargets handles POST /api/v1/targets/refresh.
func (api *NotifyAPI) RefreshTargets(w http.ResponseWriter, r *http.Request) {
	if err := api.Notifier.Refresh(r.Context()); err != nil {
		api.Logger.Error("RefreshTargets: provider refresh failed", "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
