package auth

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	// Subject is the provider's opaque, stable subject id.
	Subject string `json:"subject"`

	// Username is the display username carried in the token.
	Username string `json:"username"`

	// Provider names the authentication source.
	Provider string `json:"provider"`
}
