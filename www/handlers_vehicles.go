package www

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"servicetrack/store"
	"servicetrack/tracking"
	"servicetrack/workflow"
)

type submitResponse struct {
	Success bool `json:"success"`
	*tracking.Result
}

type rejectionResponse struct {
	Success bool `json:"success"`
	*workflow.Rejection
}

func (h *Handlers) apiVehicleCheck(w http.ResponseWriter, r *http.Request) {
	var s workflow.Submission
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		h.jsonError(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	res, err := h.engine.Tracker().Submit(s)
	if err != nil {
		var rej *workflow.Rejection
		switch {
		case errors.As(err, &rej):
			h.jsonStatus(w, http.StatusBadRequest, rejectionResponse{Rejection: rej})
		case errors.Is(err, tracking.ErrConcurrencyConflict):
			h.jsonError(w, "Vehicle was updated concurrently. Please retry.", http.StatusConflict)
		case errors.Is(err, tracking.ErrNotFound):
			h.jsonError(w, "Vehicle not found.", http.StatusNotFound)
		default:
			h.serverError(w, r, err)
		}
		return
	}

	code := http.StatusOK
	if res.NewVisit {
		code = http.StatusCreated
	}
	h.jsonStatus(w, code, submitResponse{Success: true, Result: res})
}

func (h *Handlers) vehicles(w http.ResponseWriter, r *http.Request, visits []*store.Visit, err error) {
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]any{"success": true, "vehicles": visits})
}

func (h *Handlers) apiListVehicles(w http.ResponseWriter, r *http.Request) {
	visits, err := h.engine.Tracker().Visits()
	h.vehicles(w, r, visits, err)
}

func (h *Handlers) apiGetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.Tracker().Visit(chi.URLParam(r, "vehicleNumber"))
	if errors.Is(err, tracking.ErrNotFound) {
		h.jsonError(w, "Vehicle not found.", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]any{"success": true, "vehicle": v})
}

func (h *Handlers) apiVehicleAudit(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.Tracker().Visit(chi.URLParam(r, "vehicleNumber"))
	if errors.Is(err, tracking.ErrNotFound) {
		h.jsonError(w, "Vehicle not found.", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	entries, err := h.engine.AuditTrail(v.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*store.AuditEntry{}
	}
	h.jsonOK(w, map[string]any{"success": true, "visitId": v.ID, "audit": entries})
}

func (h *Handlers) apiVehiclesToday(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.Tracker().EnteredToday()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]any{"success": true, "count": n})
}

func (h *Handlers) apiBayAllocationStarted(w http.ResponseWriter, r *http.Request) {
	visits, err := h.engine.Tracker().BayAllocationStarted()
	h.vehicles(w, r, visits, err)
}

func (h *Handlers) apiInteractiveStarted(w http.ResponseWriter, r *http.Request) {
	visits, err := h.engine.Tracker().InteractiveStarted()
	h.vehicles(w, r, visits, err)
}

func (h *Handlers) apiBayWorkInProgress(w http.ResponseWriter, r *http.Request) {
	visits, err := h.engine.Tracker().VisitsWithOpenBayStage()
	h.vehicles(w, r, visits, err)
}

func (h *Handlers) apiFinishedInteractive(w http.ResponseWriter, r *http.Request) {
	visits, err := h.engine.Tracker().VisitsFinishedInteractive()
	h.vehicles(w, r, visits, err)
}

type boardResponse struct {
	Success bool `json:"success"`
	workflow.BayWorkBoard
}

func (h *Handlers) apiBayWorkBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.engine.Tracker().BayWorkBoard()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, boardResponse{Success: true, BayWorkBoard: board})
}

func (h *Handlers) apiDeleteVehicles(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.Tracker().Reset()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]any{
		"success": true,
		"message": "All vehicle records deleted.",
		"deleted": n,
		"by":      h.getUsername(r),
	})
}
