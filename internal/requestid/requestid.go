// Package requestid tags every HTTP request with an identifier that is
// echoed back in the X-Request-ID header and written to the access log.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const key contextKey = "request_id"

// Header is the HTTP header carrying the request identifier.
const Header = "X-Request-ID"

// Middleware reuses an incoming X-Request-ID or generates a new UUID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(Header, id)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), key, id)))
	})
}

func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(key).(string)
	return id
}
