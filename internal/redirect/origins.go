package redirect

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseOrigins turns a comma or whitespace separated FRONTEND_ORIGINS value
// into a normalized CORS allow-list. Wildcards and "null" are never allowed.
func ParseOrigins(raw string, production bool) ([]string, error) {
	seen := make(map[string]struct{})
	var origins []string

	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}) {
		o := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(part)), "/")
		if o == "" || o == "*" || o == "null" {
			continue
		}
		if _, dup := seen[o]; dup {
			continue
		}

		u, err := url.Parse(o)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: origin %q is not an http(s) origin", ErrInvalidConfig, o)
		}

		seen[o] = struct{}{}
		origins = append(origins, o)
	}

	if !production {
		return origins, nil
	}

	if len(origins) == 0 {
		return nil, fmt.Errorf("%w: empty CORS allow-list", ErrUnsafeConfig)
	}
	if len(origins) == 1 && origins[0] == DevDefaultOrigin {
		return nil, fmt.Errorf("%w: FRONTEND_ORIGINS is still localhost-only", ErrUnsafeConfig)
	}
	for _, o := range origins {
		u, _ := url.Parse(o)
		if IsLocalOrPrivateHost(u.Hostname()) {
			return nil, fmt.Errorf("%w: remove local/private origin %q", ErrUnsafeConfig, o)
		}
		if u.Scheme != "https" {
			return nil, fmt.Errorf("%w: origin %q must use https", ErrUnsafeConfig, o)
		}
	}

	return origins, nil
}
