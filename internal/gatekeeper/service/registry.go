package service

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
)

// RegistryService holds the set of downstream services that receive
// post-auth callbacks. The set is loaded once at startup; changing it
// means restarting the gateway, which keeps the fanout path free of
// locking.
type RegistryService struct {
	services []domain.ServiceRegistration
	byName   map[string]domain.ServiceRegistration
}

// NewRegistry builds a registry from explicit registrations, mostly
// for tests.
func NewRegistry(services ...domain.ServiceRegistration) *RegistryService {
	byName := make(map[string]domain.ServiceRegistration, len(services))
	for _, svc := range services {
		byName[svc.Name] = svc
	}
	return &RegistryService{services: services, byName: byName}
}

type registryFile struct {
	Services []domain.ServiceRegistration `yaml:"services"`
}

// LoadRegistry reads the service registry from a YAML file and
// validates it: names must be unique and URLs must parse as absolute.
func LoadRegistry(path string) (*RegistryService, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Services))
	for _, svc := range file.Services {
		if svc.Name == "" {
			return nil, fmt.Errorf("registry %s: service with empty name", path)
		}
		if seen[svc.Name] {
			return nil, fmt.Errorf("registry %s: duplicate service %q", path, svc.Name)
		}
		seen[svc.Name] = true

		for field, u := range map[string]string{"api_url": svc.APIURL, "post_auth_url": svc.PostAuthURL} {
			parsed, err := url.Parse(u)
			if err != nil || !parsed.IsAbs() || parsed.Host == "" {
				return nil, fmt.Errorf("registry %s: service %q: %s %q is not an absolute URL", path, svc.Name, field, u)
			}
		}
	}

	return NewRegistry(file.Services...), nil
}

// List returns all registrations in file order. The slice is a copy;
// callers may not mutate the registry through it.
func (r *RegistryService) List() []domain.ServiceRegistration {
	out := make([]domain.ServiceRegistration, len(r.services))
	copy(out, r.services)
	return out
}

// Lookup returns the registration for name.
func (r *RegistryService) Lookup(name string) (domain.ServiceRegistration, error) {
	svc, ok := r.byName[name]
	if !ok {
		return domain.ServiceRegistration{}, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return svc, nil
}
