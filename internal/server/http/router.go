// Package httpserver exposes the makerhub REST API over chi.
package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures the router.
type Options struct {
	Logger      *zap.Logger
	Timeout     time.Duration
	CORSOrigins []string
	// BasePath prefixes every API route. Defaults to /api.
	BasePath string
	// UploadDir is served read-only under /uploads/ when set.
	UploadDir string
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(h *Handlers, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	base := opts.BasePath
	if base == "" {
		base = "/api"
	}

	r := chi.NewRouter()
	r.Use(
		Recover(log),
		RequestID(),
		Logging(log),
		CORS(opts.CORSOrigins),
		Timeout(opts.Timeout),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Not Found", Code: "not_found", RequestID: RequestIDFromCtx(r.Context())})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "Method Not Allowed", Code: "method_not_allowed", RequestID: RequestIDFromCtx(r.Context())})
	})

	r.Route(base, func(r chi.Router) {
		r.Use(Authenticate(h.auth, log))

		r.Get("/health", h.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/admin-create-user", h.AdminCreateUser)
			r.Post("/login", h.Login)
			r.Post("/login-json", h.LoginJSON)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Get("/me", h.Me)
			r.Put("/me", h.UpdateMe)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
			r.Put("/{id}/role", h.SetUserRole)
			r.Put("/{id}/status", h.SetUserStatus)
		})

		r.Route("/event-registrations", func(r chi.Router) {
			r.Post("/{eventID}/register", h.RegisterForEvent)
			r.Get("/registrations", h.ListRegistrations)
			r.Put("/registrations/{id}/status", h.SetRegistrationStatus)
			r.Delete("/registrations/{id}", h.DeleteRegistration)
		})

		r.Post("/upload/{category}", h.Upload)

		r.Route("/{kind}", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Get("/slug/{slug}", h.GetEntryBySlug)
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})
	})

	if opts.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", noListing(http.FileServer(http.Dir(opts.UploadDir)))))
	}
	return r
}

// noListing hides directory indexes of the file server.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
