package http

import (
	"net/http"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/internal/gatekeeper/service"
	"github.com/openagri/gatekeeper/pkg/httpx"
)

// ServicesHandler serves GET /v1/services, the directory clients use
// to discover registered service APIs. Post-auth callback URLs are
// internal and never appear here; the registration type hides them
// from JSON.
type ServicesHandler struct {
	Registry *service.RegistryService
}

type servicesResponse struct {
	Services []domain.ServiceRegistration `json:"services"`
}

func (h *ServicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, servicesResponse{Services: h.Registry.List()})
}
