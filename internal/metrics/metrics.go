// Package metrics содержит prometheus-метрики шлюза.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
)

var (
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openconnect",
		Name:      "backend_requests_total",
		Help:      "Requests to the REST backend by operation and outcome.",
	}, []string{"op", "outcome"})

	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "openconnect",
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of REST backend requests including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openconnect",
		Name:      "session_transitions_total",
		Help:      "Session store transitions by event.",
	}, []string{"event"})

	guardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openconnect",
		Name:      "guard_decisions_total",
		Help:      "Route guard decisions by action.",
	}, []string{"action"})

	activeScopes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "openconnect",
		Name:      "session_scopes",
		Help:      "Browser session scopes currently held in memory.",
	})

	authInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "openconnect",
		Name:      "auth_operations_in_flight",
		Help:      "Auth-affecting operations currently in flight.",
	})
)

// ObserveBackendRequest учитывает запрос к backend. outcome — "ok" или вид ошибки.
func ObserveBackendRequest(op string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.From(err).Kind)
	}
	backendRequests.WithLabelValues(op, outcome).Inc()
	backendDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SessionTransition учитывает переход сессии (login, logout, expired, ...).
func SessionTransition(event string) {
	sessionTransitions.WithLabelValues(event).Inc()
}

// GuardDecision учитывает решение route guard.
func GuardDecision(action string) {
	guardDecisions.WithLabelValues(action).Inc()
}

// ScopeOpened и ScopeClosed ведут счётчик сессий в памяти.
func ScopeOpened() { activeScopes.Inc() }

// ScopeClosed см. ScopeOpened.
func ScopeClosed() { activeScopes.Dec() }

// LoadingGauge отражает операции сессии, которые держат флаг загрузки.
// Подключается к сессии как необязательный индикатор загрузки.
type LoadingGauge struct{}

// StartLoading увеличивает счётчик операций в работе.
func (LoadingGauge) StartLoading(string) { authInFlight.Inc() }

// StopLoading уменьшает счётчик операций в работе.
func (LoadingGauge) StopLoading() { authInFlight.Dec() }
