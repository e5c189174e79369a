package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"servicetrack/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	detach := hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}

	h.ensureDefaultAdmin(eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE
	r.Get("/events", hub.SSEHandler)

	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	// API routes (no auth required for kiosks and dashboards)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Post("/vehicle-check", h.apiVehicleCheck)

		r.Get("/vehicles", h.apiListVehicles)
		r.Get("/vehicles/today", h.apiVehiclesToday)
		r.Get("/vehicles/bay-allocation-started", h.apiBayAllocationStarted)
		r.Get("/vehicles/interactive-started", h.apiInteractiveStarted)
		r.Get("/vehicles/bay-work-in-progress", h.apiBayWorkInProgress)
		r.Get("/vehicles/bay-work-board", h.apiBayWorkBoard)
		r.Get("/vehicles/finished-interactive-bay", h.apiFinishedInteractive)
		r.Get("/vehicles/{vehicleNumber}", h.apiGetVehicle)
		r.Get("/vehicles/{vehicleNumber}/audit", h.apiVehicleAudit)
		r.Get("/floor", h.apiFloor)

		r.Get("/dashboard/stage-performance", h.apiStagePerformance)
		r.Get("/dashboard/vehicle-count-per-stage", h.apiVehicleCountPerStage)
		r.Get("/dashboard/vehicle/{vehicleNumber}", h.apiDashboardVehicle)
		r.Get("/dashboard/all-vehicles", h.apiAllVehicles)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Delete("/vehicles", h.apiDeleteVehicles)
		})
	})

	stopFn := func() {
		detach()
		hub.Stop()
	}

	return r, stopFn
}
