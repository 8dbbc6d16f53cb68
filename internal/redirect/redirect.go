// Package redirect computes where the browser is sent after authentication
// and validates the frontend origins the API trusts.
package redirect

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// DevDefaultOrigin is the Vite dev server origin used when nothing is configured.
const DevDefaultOrigin = "http://localhost:5173"

var (
	ErrInvalidConfig = errors.New("redirect: invalid config")
	ErrUnsafeConfig  = errors.New("redirect: unsafe config")
)

// Policy describes the configured frontend origin and how strictly it is checked.
type Policy struct {
	Raw          string
	Production   bool
	AllowedHosts []string
}

// FrontendBaseURL parses and validates the configured origin.
// The returned URL has no trailing slash.
func (p Policy) FrontendBaseURL() (*url.URL, error) {
	raw := strings.TrimRight(strings.TrimSpace(p.Raw), "/")
	if raw == "" {
		return nil, fmt.Errorf("%w: frontend url is empty", ErrInvalidConfig)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: frontend url %q: %v", ErrInvalidConfig, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: frontend url must use http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: frontend url %q has no host", ErrInvalidConfig, raw)
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" || strings.Contains(raw, "#") {
		return nil, fmt.Errorf("%w: frontend url %q must not carry a query or fragment", ErrInvalidConfig, raw)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: frontend url %q must not carry credentials", ErrInvalidConfig, raw)
	}

	if p.Production {
		if err := checkProductionOrigin(raw, u); err != nil {
			return nil, err
		}
		host := strings.ToLower(u.Hostname())
		if len(p.AllowedHosts) > 0 && !slices.Contains(p.AllowedHosts, host) {
			return nil, fmt.Errorf("%w: frontend host %q is not allow-listed", ErrUnsafeConfig, host)
		}
	}

	return u, nil
}

func checkProductionOrigin(raw string, u *url.URL) error {
	if strings.EqualFold(raw, DevDefaultOrigin) {
		return fmt.Errorf("%w: %q is the development default", ErrUnsafeConfig, raw)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: %q must use https in production", ErrUnsafeConfig, raw)
	}
	if IsLocalOrPrivateHost(u.Hostname()) {
		return fmt.Errorf("%w: %q points at a local or private host", ErrUnsafeConfig, raw)
	}
	return nil
}

// IsLocalOrPrivateHost reports loopback, unspecified and RFC 1918 hosts.
func IsLocalOrPrivateHost(host string) bool {
	host = strings.Trim(strings.ToLower(host), "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate()
}

// Guard is a validated Policy. Build it once at startup so a bad origin
// stops the process instead of surfacing on the first login.
type Guard struct {
	base *url.URL
}

func NewGuard(p Policy) (*Guard, error) {
	base, err := p.FrontendBaseURL()
	if err != nil {
		return nil, err
	}
	return &Guard{base: base}, nil
}

// FrontendBaseURL returns a copy of the validated base.
func (g *Guard) FrontendBaseURL() *url.URL {
	u := *g.base
	return &u
}

// BuildRedirectURL joins the base, path and encoded query.
func (g *Guard) BuildRedirectURL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var b strings.Builder
	b.WriteString(g.base.String())
	b.WriteString(path)
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}
