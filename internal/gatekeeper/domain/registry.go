package domain

// ServiceRegistration describes one downstream service that receives
// post-authentication callbacks. Registrations come from configuration
// and are immutable at runtime.
type ServiceRegistration struct {
	Name string `yaml:"name" json:"name"`
	// APIURL is the service's base API endpoint, published to clients.
	APIURL string `yaml:"api_url" json:"api_url"`
	// PostAuthURL receives login/logout callbacks. Internal, never
	// exposed through the registry listing.
	PostAuthURL string `yaml:"post_auth_url" json:"-"`
}
