package www

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"servicetrack/tracking"
)

// filterDays echoes the requested window the way dashboards expect it.
func filterDays(r *http.Request) string {
	if d := r.URL.Query().Get("days"); d != "" {
		return d
	}
	return "All Data"
}

func (h *Handlers) apiStagePerformance(w http.ResponseWriter, r *http.Request) {
	avgs, err := h.engine.Tracker().StageDurations(r.URL.Query().Get("days"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]any{
		"success":       true,
		"avgStageTimes": avgs,
		"filterDays":    filterDays(r),
	})
}

func (h *Handlers) apiVehicleCountPerStage(w http.ResponseWriter, r *http.Request) {
	counts, err := h.engine.Tracker().StageOccupancy(r.URL.Query().Get("days"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]any{
		"success":              true,
		"vehicleCountPerStage": counts,
		"filterDays":           filterDays(r),
	})
}

type timelineResponse struct {
	Success bool `json:"success"`
	*tracking.VehicleTimeline
}

func (h *Handlers) apiDashboardVehicle(w http.ResponseWriter, r *http.Request) {
	tl, err := h.engine.Tracker().Timeline(chi.URLParam(r, "vehicleNumber"))
	if errors.Is(err, tracking.ErrNotFound) {
		h.jsonError(w, "Vehicle not found.", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, timelineResponse{Success: true, VehicleTimeline: tl})
}

func (h *Handlers) apiAllVehicles(w http.ResponseWriter, r *http.Request) {
	all, err := h.engine.Tracker().AllTimelines()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]any{"success": true, "vehicles": all})
}

func (h *Handlers) apiFloor(w http.ResponseWriter, r *http.Request) {
	floor, err := h.engine.Floor().Floor()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]any{"success": true, "vehicles": floor})
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	dbOK := h.engine.DB().Ping() == nil
	status := "ok"
	code := http.StatusOK
	if !dbOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.jsonStatus(w, code, map[string]any{
		"status":     status,
		"database":   dbOK,
		"driver":     h.engine.DB().Driver(),
		"redis":      h.engine.Floor().Healthy(),
		"messaging":  h.engine.MessagingConnected(),
		"sseClients": h.eventHub.ClientCount(),
	})
}
