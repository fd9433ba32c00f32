package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"secret not configured", "", "abc", http.StatusInternalServerError},
		{"missing header", "abc", "", http.StatusUnauthorized},
		{"wrong token", "abc", "abd", http.StatusForbidden},
		{"valid token", "abc", "abc", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := SharedToken{Header: "X-Sync-Token", Token: tc.secret}.Middleware(ok)
			req := httptest.NewRequest(http.MethodPost, "/api/sync/scanntech/run", nil)
			if tc.header != "" {
				req.Header.Set("X-Sync-Token", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}
