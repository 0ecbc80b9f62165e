package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"gridpatrol/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

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

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.apiLogin)
		r.Post("/logout", h.apiLogout)

		// Read-only
		r.Get("/status", h.apiStatus)
		r.Get("/health", h.apiHealthCheck)
		r.Get("/commands", h.apiListCommands)
		r.Get("/commands/{id}", h.apiGetCommand)
		r.Get("/captures", h.apiListCaptures)
		r.Get("/patrols", h.apiListPatrols)
		r.Get("/patrols/{id}", h.apiGetPatrol)
		r.Get("/patrol", h.apiPatrolProgress)
		r.Get("/audit", h.apiAuditLog)

		// Control
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/move", h.apiMove)
			r.Post("/home", h.apiHome)
			r.Post("/patrol", h.apiStartPatrol)
			r.Post("/patrol/stop", h.apiStopPatrol)
			r.Post("/poll/stop", h.apiStopPolling)
		})
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}
