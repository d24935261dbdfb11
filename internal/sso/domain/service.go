package domain

import "time"

// RegisteredService is a relying party registered with the SSO server, looked
// up by its OAuth client_id.
type RegisteredService struct {
	ID           string // the client_id
	Name         string
	RedirectURIs []string // allowed callbacks, exact match

	// Enabled gates all access to the service. A disabled service fails the
	// access strategy for every principal.
	Enabled bool

	// AllowedPrincipals restricts the service to the listed usernames.
	// Empty means any authenticated principal may use the service.
	AllowedPrincipals []string

	// RequireConsent forces an interactive consent prompt before a ticket is
	// issued for this service.
	RequireConsent bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllowsRedirectURI reports whether uri is a registered callback.
func (s RegisteredService) AllowsRedirectURI(uri string) bool {
	for _, allowed := range s.RedirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}

// AllowsPrincipal reports whether the named principal may access the service.
func (s RegisteredService) AllowsPrincipal(principal string) bool {
	if len(s.AllowedPrincipals) == 0 {
		return true
	}
	for _, p := range s.AllowedPrincipals {
		if p == principal {
			return true
		}
	}
	return false
}
