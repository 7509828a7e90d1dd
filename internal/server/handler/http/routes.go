package http

import (
	"net/http"

	"github.com/atinyakov/AccountKeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the account
// API. It applies JSON content-type enforcement and request logging, and
// mounts the account and label endpoints under /api.
//
// Routes:
//
//	GET    /api/accounts                              → List
//	POST   /api/accounts                              → Create
//	GET    /api/accounts/{id}                         → Get
//	PATCH  /api/accounts/{id}                         → Update
//	DELETE /api/accounts/{id}                         → Delete
//	POST   /api/accounts/{id}/password-visibility     → TogglePassword
//	GET    /api/accounts/{id}/validation              → Validation
//	GET    /api/labels[?unique=true]                  → Labels
func NewRouter(accountHandler *AccountHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", accountHandler.List)
			r.Post("/", accountHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", accountHandler.Get)
				r.Patch("/", accountHandler.Update)
				r.Delete("/", accountHandler.Delete)
				r.Post("/password-visibility", accountHandler.TogglePassword)
				r.Get("/validation", accountHandler.Validation)
			})
		})
		r.Get("/labels", accountHandler.Labels)
	})

	return r
}
