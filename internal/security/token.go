package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/makabra/mayorista-api/internal/common"
)

// SharedToken guards endpoints with a static secret sent in a request header.
// An empty Token rejects every request with 500 since the route is unusable
// until the secret is configured.
type SharedToken struct {
	Header string
	Token  string
}

// Middleware enforces the shared token: missing header -> 401, mismatch -> 403.
func (s SharedToken) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(s.Header)
	if headerName == "" {
		headerName = "X-App-Token"
	}
	expected := []byte(s.Token)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(expected) == 0 {
			common.JSONError(w, http.StatusInternalServerError, "TOKEN_NOT_CONFIGURED", "endpoint secret is not configured", nil)
			return
		}
		got := strings.TrimSpace(r.Header.Get(headerName))
		if got == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing "+headerName+" header", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "invalid token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
