package http

import (
	"net/http"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
	"github.com/openagri/gatekeeper/pkg/httpx"
)

// ReadyzHandler reports readiness. Validation fails closed when the
// store is down, so an unreachable database means the gateway cannot
// do useful work and should be pulled from rotation.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{Database: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
