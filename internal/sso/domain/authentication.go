package domain

import "time"

// AuthnAttributes is the claim bag bound to an authentication at session
// establishment. State and Nonce are typed optionals: the zero value means
// the original request never supplied them, and they must then be omitted
// from callback URLs entirely (no empty "state=" artifact).
type AuthnAttributes struct {
	State string
	Nonce string
}

// Authentication captures the principal and attributes bound to a ticket at
// issuance. It is recorded once when the session is established and carried
// across the authorization hand-off unchanged.
type Authentication struct {
	Principal  string
	Attributes AuthnAttributes
	AuthnTime  time.Time
}
