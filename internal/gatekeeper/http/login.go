package http

import (
	"context"
	"net/http"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/internal/gatekeeper/service"
	"github.com/openagri/gatekeeper/pkg/httpx"
	"github.com/openagri/gatekeeper/pkg/slogx"
)

// fanoutBudget bounds background callback delivery after the response
// has already been written.
const fanoutBudget = 30 * time.Second

// LoginHandler serves POST /v1/auth/login: verifies credentials, opens
// a refresh family, and notifies registered services. The notification
// runs after the response; a dead downstream can neither slow down nor
// fail a login.
type LoginHandler struct {
	Credentials *service.CredentialService
	Tokens      *service.TokenService
	Fanout      *service.FanoutService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"` // access token lifetime, seconds
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "username and password are required")
		return
	}

	identity, err := h.Credentials.Verify(ctx, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.Tokens.Issue(ctx, identity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	notifyAsync(ctx, h.Fanout, domain.EventLogin, identity)

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		Access:    pair.AccessToken,
		Refresh:   pair.RefreshToken,
		TokenType: pair.TokenType,
		ExpiresIn: int64(pair.ExpiresIn.Seconds()),
	})
}

// notifyAsync fans the event out off the request path. The request
// context's values (logger, request id) survive; its cancellation does
// not, so writing the response never cuts callbacks short.
func notifyAsync(ctx context.Context, fanout *service.FanoutService, event domain.AuthEvent, identity domain.Identity) {
	if fanout == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, fanoutBudget)
		defer cancel()

		result := fanout.Notify(ctx, event, identity)
		if result.Failed() > 0 {
			slogx.FromContext(ctx).Warn("post-auth fanout partially failed",
				"event", string(event),
				"delivered", result.Succeeded(),
				"failed", result.Failed(),
			)
		}
	}()
}
