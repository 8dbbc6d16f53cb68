package session

import (
	"net/http"
	"time"
)

const (
	CookieName = "_rifftube_session"
)

// CookieOptions defines how session cookies are issued. The frontend and
// API live on different origins, so production uses SameSite=None+Secure.
type CookieOptions struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if !o.HttpOnly {
		o.HttpOnly = true
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteNoneMode
	}
	return o
}

// SetCookie issues the session cookie to the client.
func SetCookie(
	w http.ResponseWriter,
	value string,
	expiresAt time.Time,
	opts CookieOptions,
) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Expires:  expiresAt,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearCookie removes the session cookie from the client.
func ClearCookie(
	w http.ResponseWriter,
	opts CookieOptions,
) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// Cookies moves Session values in and out of HTTP requests.
type Cookies struct {
	codec *Codec
	opts  CookieOptions
}

func NewCookies(codec *Codec, opts CookieOptions) *Cookies {
	return &Cookies{codec: codec, opts: opts.normalize()}
}

// Read returns the request's session. A missing cookie yields an anonymous
// session; tampered reports whether a cookie was present but rejected.
func (c *Cookies) Read(r *http.Request) (s Session, tampered bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, false
	}
	s, err = c.codec.Decode(cookie.Value)
	if err != nil {
		return Session{}, true
	}
	return s, false
}

// Write stores s in the response. Anonymous sessions clear the cookie.
func (c *Cookies) Write(w http.ResponseWriter, s Session) error {
	if s.Anonymous() {
		c.Clear(w)
		return nil
	}
	value, err := c.codec.Encode(s)
	if err != nil {
		return err
	}
	SetCookie(w, value, s.ExpiresAt, c.opts)
	return nil
}

func (c *Cookies) Clear(w http.ResponseWriter) {
	ClearCookie(w, c.opts)
}
