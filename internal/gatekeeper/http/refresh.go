package http

import (
	"net/http"

	"github.com/openagri/gatekeeper/internal/gatekeeper/service"
	"github.com/openagri/gatekeeper/pkg/httpx"
)

// RefreshHandler serves POST /v1/auth/refresh: redeems a refresh token
// for a new pair. The presented token is consumed whether or not the
// caller gets the response; a lost response means logging in again,
// not a resumable retry, because a replayable refresh endpoint would
// defeat reuse detection.
type RefreshHandler struct {
	Tokens *service.TokenService
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "refresh token is required")
		return
	}

	pair, err := h.Tokens.Rotate(r.Context(), req.Refresh)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		Access:    pair.AccessToken,
		Refresh:   pair.RefreshToken,
		TokenType: pair.TokenType,
		ExpiresIn: int64(pair.ExpiresIn.Seconds()),
	})
}
