package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileJar is a cookie jar for a single API origin that persists its
// cookies to disk, so a login survives between riffctl invocations.
type fileJar struct {
	mu    sync.Mutex
	inner *cookiejar.Jar
	path  string
	base  *url.URL

	// expires is keyed by cookie name; the inner jar does not report it.
	expires map[string]time.Time
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
	Secure  bool      `json:"secure,omitempty"`
}

func openJar(path string, base *url.URL) (*fileJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &fileJar{inner: inner, path: path, base: base, expires: map[string]time.Time{}}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookie jar: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("parse cookie jar %s: %w", path, err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		if !s.Expires.IsZero() && s.Expires.Before(time.Now()) {
			continue
		}
		if !s.Expires.IsZero() {
			j.expires[s.Name] = s.Expires
		}
		cookies = append(cookies, &http.Cookie{
			Name:    s.Name,
			Value:   s.Value,
			Path:    s.Path,
			Expires: s.Expires,
			Secure:  s.Secure,
		})
	}
	inner.SetCookies(base, cookies)
	return j, nil
}

func (j *fileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *fileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for _, c := range cookies {
		switch {
		case c.MaxAge > 0:
			j.expires[c.Name] = now.Add(time.Duration(c.MaxAge) * time.Second)
		case c.MaxAge < 0:
			delete(j.expires, c.Name)
		case !c.Expires.IsZero():
			j.expires[c.Name] = c.Expires
		default:
			delete(j.expires, c.Name)
		}
	}
	if err := j.save(); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
}

// save writes the cookies the jar would send to the API root.
func (j *fileJar) save() error {
	current := j.inner.Cookies(j.base)
	stored := make([]storedCookie, 0, len(current))
	for _, c := range current {
		stored = append(stored, storedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    "/",
			Expires: j.expires[c.Name],
			Secure:  j.base.Scheme == "https",
		})
	}

	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(j.path, raw, 0o600); err != nil {
		return fmt.Errorf("write cookie jar: %w", err)
	}
	return nil
}

func defaultJarPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "rifftube", "cookies.json")
}
