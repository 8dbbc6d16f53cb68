package credentials

import (
	"net/mail"
	"regexp"
	"strings"

	"rifftube/internal/auth"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	maxEmailLength    = 254
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// NormalizeLogin is the form used for lookups and logs.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// SignupInput is what the signup form posts.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

func (in SignupInput) normalized() SignupInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	return in
}

// validate checks shape only. Uniqueness needs storage and is checked by
// the service.
func (in SignupInput) validate() auth.FieldErrors {
	errs := auth.FieldErrors{}

	switch {
	case in.Username == "":
		errs.Add("username", "can't be blank")
	case len(in.Username) < MinUsernameLength:
		errs.Add("username", "is too short (minimum is 3 characters)")
	case len(in.Username) > MaxUsernameLength:
		errs.Add("username", "is too long (maximum is 30 characters)")
	case !usernamePattern.MatchString(in.Username):
		errs.Add("username", "may only contain letters, numbers, underscores, dots and dashes")
	}

	switch {
	case in.Email == "":
		errs.Add("email", "can't be blank")
	case len(in.Email) > maxEmailLength || !validEmail(in.Email):
		errs.Add("email", "is invalid")
	}

	switch {
	case strings.TrimSpace(in.Password) == "":
		errs.Add("password", "can't be blank")
	case len(in.Password) < MinPasswordLength:
		errs.Add("password", "is too short (minimum is 8 characters)")
	case len(in.Password) > MaxPasswordLength:
		errs.Add("password", "is too long (maximum is 72 characters)")
	}

	return errs
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}
