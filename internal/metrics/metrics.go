package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Guard decision outcomes.
const (
	DecisionForward  = "forward"
	DecisionRedirect = "redirect"
	DecisionReject   = "reject"
)

// Login outcomes, recorded once per callback.
const (
	LoginSuccess        = "success"
	LoginInvalidState   = "invalid_state"
	LoginInvalidRequest = "invalid_request"
	LoginRejected       = "rejected"
	LoginUpstreamError  = "upstream_error"
	LoginInvalidToken   = "invalid_token"
	LoginInternalError  = "internal_error"
)

var GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sso_guard_decisions_total",
	Help: "Session guard decisions by outcome",
}, []string{"decision"})

var Logins = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sso_logins_total",
	Help: "Completed OAuth2 callbacks by outcome",
}, []string{"result"})

var Logouts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sso_logouts_total",
	Help: "Sessions destroyed through the logout endpoint",
})

var TokenExchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "sso_token_exchange_duration_seconds",
	Help:    "Latency of authorization code exchanges against the token endpoint",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 11),
})

var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sso_memory_sessions",
	Help: "Sessions currently held by the in-memory session store",
})
