// Package metrics exposes auth counters to prometheus. A nil *Auth is a
// valid no-op recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rifftube"

// Result labels.
const (
	ResultSuccess  = "success"
	ResultMissing  = "missing_credentials"
	ResultInvalid  = "invalid_credentials"
	ResultConflict = "conflict"
	ResultError    = "error"
	ResultExisting = "existing"
	ResultCreated  = "created"
	ResultFailure  = "failure"
)

type Auth struct {
	logins      *prometheus.CounterVec
	signups     *prometheus.CounterVec
	oauth       *prometheus.CounterVec
	logouts     prometheus.Counter
	healed      prometheus.Counter
	rateLimited *prometheus.CounterVec
}

func NewAuth(reg prometheus.Registerer) *Auth {
	factory := promauto.With(reg)

	return &Auth{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Password login attempts by result",
		}, []string{"result"}),

		signups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "signups_total",
			Help:      "Signup attempts by result",
		}, []string{"result"}),

		oauth: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "oauth_callbacks_total",
			Help:      "OAuth callbacks by provider and result",
		}, []string{"provider", "result"}),

		logouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Logout requests",
		}),

		healed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "stale_sessions_cleared_total",
			Help:      "Sessions cleared because they pointed at an inactive user or revoked id",
		}),

		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"route"}),
	}
}

func (m *Auth) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Auth) Signup(result string) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(result).Inc()
}

func (m *Auth) OAuthCallback(provider, result string) {
	if m == nil {
		return
	}
	m.oauth.WithLabelValues(provider, result).Inc()
}

func (m *Auth) Logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func (m *Auth) SessionCleared() {
	if m == nil {
		return
	}
	m.healed.Inc()
}

func (m *Auth) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}
