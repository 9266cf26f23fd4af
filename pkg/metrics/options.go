package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option configures a Manager.
type Option func(*Manager)

// WithNames overrides the metric name prefix. Empty parts keep the default.
func WithNames(namespace, subsystem string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by every latency histogram.
func WithLatencyBuckets(buckets ...float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithConstLabels attaches labels to every series, e.g. the deployment region.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.customLabels[k] = v
		}
	}
}

// WithRegistry registers the metrics on r instead of the default registerer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// Disabled turns every package-level recorder into a no-op when applied to the global manager.
func Disabled() Option {
	return func(m *Manager) { m.enabled = false }
}
