package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los colectores Prometheus de la aplicación en un registro propio.
// Todos los métodos aceptan receptor nil para que los componentes funcionen sin métricas.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	policyDecisions *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	forcedLogouts   *prometheus.CounterVec
	roleChanges     prometheus.Counter
	liveClients     prometheus.Gauge
}

// New crea y registra los colectores.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		policyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_decisions_total",
			Help: "Authorization decisions by action and outcome.",
		}, []string{"action", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_notifications_total",
			Help: "Live notifications by event and delivery result.",
		}, []string{"event", "result"}),
		forcedLogouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forced_logouts_total",
			Help: "Forced logout sequences started, by trigger.",
		}, []string{"trigger"}),
		roleChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "role_changes_total",
			Help: "Role or department changes recorded.",
		}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_clients",
			Help: "Connected live notification clients.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.policyDecisions, m.notifications,
		m.forcedLogouts, m.roleChanges, m.liveClients,
	)
	return m
}

// Handler expone el registro en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry devuelve el registro subyacente.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) ObservePolicy(action string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.policyDecisions.WithLabelValues(action, outcome).Inc()
}

// ObserveNotification result: delivered | dropped | failed | published.
func (m *Metrics) ObserveNotification(event, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, result).Inc()
}

// ObserveForcedLogout trigger: timer | sweep.
func (m *Metrics) ObserveForcedLogout(trigger string) {
	if m == nil {
		return
	}
	m.forcedLogouts.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ObserveRoleChange() {
	if m == nil {
		return
	}
	m.roleChanges.Inc()
}

func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.liveClients.Set(float64(n))
}
