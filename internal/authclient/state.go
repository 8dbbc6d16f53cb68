package authclient

// User is the identity returned by the API.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
}

// State is a snapshot of what the client knows about the current user.
type State struct {
	User          *User
	Loading       bool
	Error         string
	IsInitialized bool
}

// IsAuthenticated is true once the first probe has finished and a user is set.
func (s State) IsAuthenticated() bool {
	return s.User != nil && s.IsInitialized
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
