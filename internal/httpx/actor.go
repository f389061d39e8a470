package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/actor"
)

// Identity headers are set by the auth gateway in front of this service.
const (
	HeaderUserID         = "X-User-Id"
	HeaderUserRole       = "X-User-Role"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Identify attaches the caller to the request context when both identity
// headers are present and the role is known.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := actor.Actor{ID: r.Header.Get(HeaderUserID), Role: actor.Role(r.Header.Get(HeaderUserRole))}
		if a.ID != "" && a.Role.Valid() {
			r = r.WithContext(actor.WithActor(r.Context(), a))
		}
		next.ServeHTTP(w, r)
	})
}

func requireActor(w http.ResponseWriter, r *http.Request) (actor.Actor, bool) {
	a, ok := actor.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid identity"})
	}
	return a, ok
}
