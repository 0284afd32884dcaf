package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prolink"

// Push outcomes
const (
	PushQueued  = "queued"
	PushDropped = "dropped"
	PushOffline = "offline"
	PushRemote  = "remote"
	PushFailed  = "failed"
)

// Collectors holds the service's prometheus instruments. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	registry prometheus.Gatherer

	connections    prometheus.Gauge
	onlineUsers    prometheus.Gauge
	pushes         *prometheus.CounterVec
	reaped         prometheus.Counter
	messagesSent   prometheus.Counter
	transitions    *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	searchFailures prometheus.Counter
	httpRequests   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Collectors {
	c := &Collectors{
		registry: reg,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Live websocket connections on this process.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_online_users",
			Help:      "Users with at least one live connection on this process.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_pushes_total",
			Help:      "Push attempts by outcome.",
		}, []string{"result"}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_reaped_total",
			Help:      "Connections closed after missing a liveness ping.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages persisted.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_status_transitions_total",
			Help:      "Applied delivery status transitions.",
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Persisted notifications by type.",
		}, []string{"type"}),
		searchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_index_failures_total",
			Help:      "Messages stored without a usable search representation.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		}, []string{"method", "route", "code"}),
	}

	reg.MustRegister(
		c.connections,
		c.onlineUsers,
		c.pushes,
		c.reaped,
		c.messagesSent,
		c.transitions,
		c.notifications,
		c.searchFailures,
		c.httpRequests,
		prometheus.NewGoCollector(),
	)
	return c
}

// RegisterGaugeFunc exposes a value computed on scrape, such as active typing entries.
func (c *Collectors) RegisterGaugeFunc(reg *prometheus.Registry, name, help string, fn func() float64) {
	if c == nil {
		return
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) SetConnections(n int64) {
	if c == nil {
		return
	}
	c.connections.Set(float64(n))
}

func (c *Collectors) SetOnlineUsers(n int64) {
	if c == nil {
		return
	}
	c.onlineUsers.Set(float64(n))
}

func (c *Collectors) Push(result string) {
	if c == nil {
		return
	}
	c.pushes.WithLabelValues(result).Inc()
}

func (c *Collectors) Reaped() {
	if c == nil {
		return
	}
	c.reaped.Inc()
}

func (c *Collectors) MessageSent() {
	if c == nil {
		return
	}
	c.messagesSent.Inc()
}

func (c *Collectors) Transition(status string, n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.transitions.WithLabelValues(status).Add(float64(n))
}

func (c *Collectors) NotificationCreated(kind string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(kind).Inc()
}

func (c *Collectors) SearchIndexFailed() {
	if c == nil {
		return
	}
	c.searchFailures.Inc()
}

func (c *Collectors) HTTPRequest(method, route, code string) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, code).Inc()
}
