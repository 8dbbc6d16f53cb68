package auth

// Identity is a normalized assertion returned by an OAuth provider after a
// successful callback. It contains facts only, no decisions.
type Identity struct {
	Provider       string // stored provider name, e.g. "google"
	ProviderUserID string // provider-scoped subject id
	Email          string
	EmailVerified  bool
	Name           string // display name, may be empty
}
