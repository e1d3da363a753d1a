// Package metrics exposes Prometheus counters for the bridge components.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "echohue"

// knownAttributes bounds the attribute label; request bodies choose the keys.
var knownAttributes = map[string]bool{
	"on": true, "bri": true, "ct": true, "xy": true, "hue": true, "sat": true,
}

// Metrics holds the bridge counters.
type Metrics struct {
	announcements prometheus.Counter
	probes        *prometheus.CounterVec
	requests      *prometheus.CounterVec
	lightUpdates  *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
// Returns nil when reg is nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		announcements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ssdp",
			Name:      "announcements_total",
			Help:      "NOTIFY ssdp:alive messages sent",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ssdp",
			Name:      "probes_total",
			Help:      "M-SEARCH probes received, by answered search target",
		}, []string{"target", "answered"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests handled by the bridge API, by route",
		}, []string{"route"}),
		lightUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "updates_total",
			Help:      "Attribute updates applied to lights, by attribute and result",
		}, []string{"attribute", "result"}),
	}

	for _, c := range []prometheus.Collector{m.announcements, m.probes, m.requests, m.lightUpdates} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Announced counts one NOTIFY.
func (m *Metrics) Announced() {
	if m == nil {
		return
	}
	m.announcements.Inc()
}

// Probe counts one M-SEARCH. target is empty for ignored probes.
func (m *Metrics) Probe(target string, answered bool) {
	if m == nil {
		return
	}
	if target == "" {
		target = "none"
	}
	m.probes.WithLabelValues(target, strconv.FormatBool(answered)).Inc()
}

// Request counts one API request.
func (m *Metrics) Request(route string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route).Inc()
}

// LightUpdate counts one attribute update.
func (m *Metrics) LightUpdate(attribute string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	if !knownAttributes[attribute] {
		attribute = "unknown"
	}
	m.lightUpdates.WithLabelValues(attribute, result).Inc()
}
