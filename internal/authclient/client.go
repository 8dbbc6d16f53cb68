// Package authclient is the client-side view of "who is logged in". A
// Client owns that state, probes the API for it on creation and updates it
// on sign-in, sign-up and sign-out.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"rifftube/internal/logger"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL  string
	http     *http.Client
	log      *log.Logger
	onChange func(State)

	mu    sync.Mutex
	state State

	// probeSeq identifies the newest probe; only it may write state.
	probeSeq    uint64
	cancelProbe context.CancelFunc

	initialized chan struct{}
	initOnce    sync.Once
}

type Option func(*Client)

// WithHTTPClient replaces the default client. It should carry a cookie jar
// or the session cookie will not survive between calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithOnChange registers a callback that receives a copy of the state after
// every change. It runs on the goroutine that made the change.
func WithOnChange(fn func(State)) Option {
	return func(c *Client) { c.onChange = fn }
}

// New builds a client for the API at baseURL and starts the startup probe
// in the background. Use WaitInitialized to block until it has finished.
func New(ctx context.Context, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("authclient: invalid base url %q", baseURL)
	}

	c := &Client{
		baseURL:     u.String(),
		state:       State{Loading: true},
		initialized: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http = &http.Client{Jar: jar, Timeout: defaultTimeout}
	}
	if c.log == nil {
		c.log = logger.L().With("component", "authclient")
	}

	// Register the probe before returning so a RefreshMe issued right
	// after New supersedes it.
	gen, probeCtx, cancel := c.beginProbe(ctx)
	go func() {
		defer cancel()
		_ = c.runProbe(probeCtx, gen)
	}()

	return c, nil
}

// State returns a copy of the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// WaitInitialized blocks until the first probe or sign-in/out settles the
// state, or ctx ends.
func (c *Client) WaitInitialized(ctx context.Context) error {
	select {
	case <-c.initialized:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels an in-flight probe.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancelProbe
	c.cancelProbe = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// RefreshMe asks the API who is logged in. Starting a probe cancels the
// previous one; only the newest probe may write state, so an older
// response arriving late is dropped with ErrProbeSuperseded. A 401 means
// anonymous and is not an error; other failures clear the user and are
// only logged.
func (c *Client) RefreshMe(ctx context.Context) error {
	gen, probeCtx, cancel := c.beginProbe(ctx)
	defer cancel()
	return c.runProbe(probeCtx, gen)
}

func (c *Client) beginProbe(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	probeCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelProbe != nil {
		c.cancelProbe()
	}
	c.probeSeq++
	c.cancelProbe = cancel
	return c.probeSeq, probeCtx, cancel
}

func (c *Client) runProbe(ctx context.Context, gen uint64) error {
	var env userEnvelope
	err := c.do(ctx, http.MethodGet, pathMe, nil, &env)

	cancelled := ctx.Err() != nil
	var ae *Error
	anonymous := errors.As(err, &ae) && ae.Kind == KindHTTP && ae.Status == http.StatusUnauthorized

	applied := c.updateIf(gen, func(s *State) {
		switch {
		case cancelled:
			// Cancelled by the caller, not superseded: who is logged in
			// is unknown, so the user is left as it was.
		case err == nil:
			s.User = env.User
		default:
			s.User = nil
		}
		s.Loading = false
		s.IsInitialized = true
	})
	if !applied {
		return ErrProbeSuperseded
	}

	c.mu.Lock()
	if c.probeSeq == gen {
		c.cancelProbe = nil
	}
	c.mu.Unlock()

	switch {
	case cancelled:
		return ctx.Err()
	case err == nil, anonymous:
		return nil
	default:
		c.log.Warn("session probe failed", "err", err)
		return nil
	}
}

// SignIn logs in with an email or username and password. On failure the
// normalized message is stored in State.Error and the error is returned.
func (c *Client) SignIn(ctx context.Context, login, password string) error {
	if strings.TrimSpace(login) == "" || strings.TrimSpace(password) == "" {
		return c.reject(validationError(KindMissingCredentials, MsgMissingCredentials))
	}

	body := map[string]any{"user": map[string]string{
		"login":    strings.TrimSpace(login),
		"password": password,
	}}
	return c.authenticate(ctx, pathLogin, body)
}

// SignUp creates an account and logs into it.
func (c *Client) SignUp(ctx context.Context, username, email, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return c.reject(validationError(KindInvalidInput, MsgAllFieldsRequired))
	}
	if len(password) < minPasswordLength {
		return c.reject(validationError(KindInvalidInput, MsgPasswordTooShort))
	}

	body := map[string]any{"user": map[string]string{
		"username": strings.TrimSpace(username),
		"email":    strings.TrimSpace(email),
		"password": password,
	}}
	return c.authenticate(ctx, pathSignup, body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) error {
	c.update(func(s *State) {
		s.Loading = true
		s.Error = ""
	})

	var env userEnvelope
	err := c.do(ctx, http.MethodPost, path, body, &env)
	if err == nil && env.User == nil {
		err = &Error{Kind: KindHTTP, Status: http.StatusOK, Message: "response missing user"}
	}
	if err != nil {
		c.update(func(s *State) {
			s.Error = NormalizeAuthError(err)
			s.Loading = false
		})
		return err
	}

	c.settle(func(s *State) {
		s.User = env.User
		s.Loading = false
	})
	return nil
}

// SignOut clears the local user even when the API call fails; such a
// failure is logged, not reported.
func (c *Client) SignOut(ctx context.Context) {
	c.settle(func(s *State) {
		s.User = nil
		s.Loading = true
	})

	if err := c.do(ctx, http.MethodDelete, pathLogout, nil, nil); err != nil {
		c.log.Warn("sign out request failed", "err", err)
	}

	c.update(func(s *State) { s.Loading = false })
}

// ClearError resets State.Error.
func (c *Client) ClearError() {
	c.update(func(s *State) { s.Error = "" })
}

func (c *Client) reject(e *Error) error {
	c.update(func(s *State) { s.Error = e.Message })
	return e
}

// settle applies a user-initiated change to the user. Any in-flight probe
// predates it, so it is invalidated.
func (c *Client) settle(fn func(*State)) {
	c.mu.Lock()
	c.probeSeq++
	if c.cancelProbe != nil {
		c.cancelProbe()
		c.cancelProbe = nil
	}
	fn(&c.state)
	c.state.IsInitialized = true
	c.commitLocked()
}

func (c *Client) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.commitLocked()
}

// updateIf applies fn only if gen is still the newest probe.
func (c *Client) updateIf(gen uint64, fn func(*State)) bool {
	c.mu.Lock()
	if c.probeSeq != gen {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	c.commitLocked()
	return true
}

// commitLocked releases c.mu and publishes the new state.
func (c *Client) commitLocked() {
	snapshot := c.state.clone()
	c.mu.Unlock()

	if snapshot.IsInitialized {
		c.initOnce.Do(func() { close(c.initialized) })
	}
	if c.onChange != nil {
		c.onChange(snapshot)
	}
}
