package health_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/makabra/mayorista-api/internal/health"
)

// Draining flips readiness only; liveness keeps answering so the process is
// not restarted mid-shutdown.
func TestDrainingFailsReadinessButNotLiveness(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	h := health.Handler{Checker: stubChecker{dbErr: health.ErrDisabled}}

	code, body := ready(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "disabled", body["db"])

	health.SetReady(false)
	code, body = ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, map[string]string{"status": "shutting_down"}, body)

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
