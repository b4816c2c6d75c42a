package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openagri/gatekeeper/internal/gatekeeper/service"
	"github.com/openagri/gatekeeper/pkg/httpx"
	"github.com/openagri/gatekeeper/pkg/slogx"
)

// writeServiceError maps the service failure taxonomy onto HTTP. The
// sentinel's message doubles as the wire code, so the mapping cannot
// drift from the service layer.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized,
			service.ErrInvalidCredentials.Error(), "username or password incorrect")
	case errors.Is(err, service.ErrMalformedToken):
		httpx.WriteError(w, http.StatusUnauthorized,
			service.ErrMalformedToken.Error(), "token is malformed or of the wrong kind")
	case errors.Is(err, service.ErrExpiredToken):
		httpx.WriteError(w, http.StatusUnauthorized,
			service.ErrExpiredToken.Error(), "token has expired")
	case errors.Is(err, service.ErrReuseDetected):
		// Reported before the revoked case: a reuse error implies the
		// family is now revoked too.
		httpx.WriteError(w, http.StatusUnauthorized,
			service.ErrReuseDetected.Error(), "refresh token replayed; session revoked, log in again")
	case errors.Is(err, service.ErrRevokedToken):
		httpx.WriteError(w, http.StatusUnauthorized,
			service.ErrRevokedToken.Error(), "token has been revoked")
	case errors.Is(err, service.ErrStoreUnavailable):
		slogx.FromContext(r.Context()).Error("token store unavailable", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			service.ErrStoreUnavailable.Error(), "try again shortly")
	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "internal error")
	}
}

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON parses a JSON request body into dst, rejecting unknown
// fields and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "request body is not valid JSON")
		return false
	}
	return true
}
