package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/mailroom/internal/pkg/httputil"
)

// SetupRoutes configures the API router.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", WorkspaceHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/", h.HandleSubscribersList)
			r.Post("/", h.HandleSubscriberStore)
			r.Post("/sync", h.HandleSubscribersSync)
			r.Get("/{id}", h.HandleSubscriberShow)
			r.Put("/{id}", h.HandleSubscriberUpdate)
			r.Delete("/{id}", h.HandleSubscriberDelete)
		})

		r.Route("/tags/{tagID}/subscribers", func(r chi.Router) {
			r.Post("/", h.HandleTagSubscribersStore)
			r.Put("/", h.HandleTagSubscribersUpdate)
			r.Delete("/", h.HandleTagSubscribersDestroy)
		})
	})

	return r
}
