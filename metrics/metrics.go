// Package metrics exposes Prometheus counters for the session lifecycle.
// A nil *Collectors is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "auth_session"

// Outcome labels
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeRejected   = "rejected"   // credentials refused or long-lived credential gone
	OutcomeSuperseded = "superseded" // result discarded after a newer login/logout
	OutcomeNoop       = "noop"
)

type Collectors struct {
	Logins            *prometheus.CounterVec
	Refreshes         *prometheus.CounterVec
	Logouts           *prometheus.CounterVec
	AuthorizedRetries prometheus.Counter
}

// New creates the collectors and registers them on reg when it is non-nil
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Access token refreshes sent to the auth API, by outcome.",
		}, []string{"outcome"}),
		Logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logouts by outcome of the server notification.",
		}, []string{"outcome"}),
		AuthorizedRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorized_retries_total",
			Help:      "API calls retried once after refreshing the access token.",
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.Logins, c.Refreshes, c.Logouts, c.AuthorizedRetries} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) Login(outcome string) {
	if c == nil {
		return
	}
	c.Logins.WithLabelValues(outcome).Inc()
}

func (c *Collectors) Refresh(outcome string) {
	if c == nil {
		return
	}
	c.Refreshes.WithLabelValues(outcome).Inc()
}

func (c *Collectors) Logout(outcome string) {
	if c == nil {
		return
	}
	c.Logouts.WithLabelValues(outcome).Inc()
}

func (c *Collectors) Retry() {
	if c == nil {
		return
	}
	c.AuthorizedRetries.Inc()
}
