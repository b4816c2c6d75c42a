package http

import (
	"net/http"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/internal/gatekeeper/service"
	"github.com/openagri/gatekeeper/pkg/httpx"
)

// LogoutHandler serves POST /v1/auth/logout: revokes the presented
// token's whole family, killing every access and refresh token of the
// session, then notifies registered services so they can drop local
// session state.
type LogoutHandler struct {
	Tokens *service.TokenService
	Fanout *service.FanoutService
}

type logoutRequest struct {
	Token string `json:"token"`
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		req.Token = bearerToken(r)
	}
	if req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "no token in body or Authorization header")
		return
	}

	claims, err := h.Tokens.Logout(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	notifyAsync(r.Context(), h.Fanout, domain.EventLogout, domain.Identity{
		ID:       claims.Subject,
		Username: claims.Username,
	})

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}
