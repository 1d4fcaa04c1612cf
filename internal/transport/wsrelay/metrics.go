package wsrelay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported in the dropped frames counter.
const (
	dropUnknownTarget = "unknown_target"
	dropUnknownPort   = "unknown_port"
	dropNotOwner      = "not_owner"
	dropPeerGone      = "peer_gone"
	dropInvalid       = "invalid"
)

// Metrics holds the relay's prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Connections prometheus.Gauge
	Frames      *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Ports       prometheus.Gauge
}

// NewMetrics creates the relay collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "modalkit",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Number of connected browsing contexts",
		}),
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modalkit",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Frames received from clients by operation",
		}, []string{"op"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modalkit",
			Subsystem: "relay",
			Name:      "dropped_frames_total",
			Help:      "Frames that could not be routed by reason",
		}, []string{"reason"}),
		Ports: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "modalkit",
			Subsystem: "relay",
			Name:      "ports",
			Help:      "Number of live ports known to the relay",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
