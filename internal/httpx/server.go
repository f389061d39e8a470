package httpx

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"net/http"
	"time"
)

const RequestTimeout = 15 * time.Second

// NewRouter carries the middleware every route shares. Routes that must not
// be cut off by the request timeout, like the stock stream, are registered
// on it directly; the rest go through WithTimeout.
func NewRouter(origins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", HeaderUserID, HeaderUserRole, HeaderIdempotencyKey},
		AllowCredentials: true,
	}).Handler)
	r.Use(Identify)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func WithTimeout(r chi.Router) chi.Router {
	return r.With(middleware.Timeout(RequestTimeout))
}
