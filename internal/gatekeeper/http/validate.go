package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/service"
	"github.com/openagri/gatekeeper/pkg/httpx"
)

// ValidateHandler serves POST /v1/auth/validate, the remote validation
// endpoint downstream services call instead of holding verification
// keys. The token comes from the JSON body or, failing that, the
// Authorization header.
type ValidateHandler struct {
	Tokens *service.TokenService
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Subject   string `json:"subject"`
	Username  string `json:"username,omitempty"`
	Kind      string `json:"kind"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
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

	claims, err := h.Tokens.Validate(r.Context(), req.Token, "")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var expiresAt int64
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time.Unix()
	} else {
		expiresAt = time.Now().Unix()
	}

	httpx.WriteJSON(w, http.StatusOK, validateResponse{
		Subject:   claims.Subject,
		Username:  claims.Username,
		Kind:      string(claims.Kind),
		ExpiresAt: expiresAt,
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
