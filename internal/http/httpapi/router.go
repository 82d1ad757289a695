package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/http/handlers"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/middleware"
)

// Options configures the router's middleware.
type Options struct {
	JWTSecret      string
	JWTIssuer      string
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	// StorageDir is served under /static when set.
	StorageDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	if opts.StorageDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StorageDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret, opts.JWTIssuer))

		r.Post("/v1/images/generate", app.ImagesGenerate)
		r.Get("/v1/generations", app.ListGenerations)
		r.Post("/v1/generations/{id}/{counter}", app.IncrementCounter)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))
			r.Get("/backends", app.ListBackends)
			r.Post("/backends/{key}/activate", app.ActivateBackend)
			r.Put("/backends/{key}/credentials", app.UpdateBackendCredentials)
			r.Get("/guard-rules", app.ListGuardRules)
			r.Post("/guard-rules/refresh", app.RefreshGuardRules)
		})
	})

	return r
}
