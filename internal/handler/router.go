package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/roulette-draw/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware пульта розыгрыша.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/operator/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/campaigns", h.GetCampaigns)

			r.Route("/roulette", func(r chi.Router) {
				r.Post("/select", h.SelectCampaign)
				r.Get("/state", h.GetState)
				r.Get("/layout", h.GetLayout)
				r.Post("/draw", h.Draw)
				r.Post("/reveal/{id}/dismiss", h.DismissReveal)
				r.Post("/error/dismiss", h.DismissError)
				r.Get("/stream", h.Stream)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
