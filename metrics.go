package pamixer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for a session.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	objects       *prometheus.GaugeVec
	events        *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	metersActive  prometheus.Gauge
	metersCreated prometheus.Counter
	metersFailed  prometheus.Counter
	metersRelease prometheus.Counter
	peakSamples   prometheus.Counter
	dropped       *prometheus.CounterVec
	sessionState  prometheus.Gauge

	collectors []prometheus.Collector
}

// NewMetrics creates the session metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	const ns = "pamixer"

	m.objects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "objects",
			Help:      "Number of cached objects",
		},
		[]string{"kind"},
	)
	m.events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_total",
			Help:      "Subscription events received from the server",
		},
		[]string{"facility", "type"},
	)
	m.fetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "fetch_errors_total",
			Help:      "Failed info requests",
		},
		[]string{"kind"},
	)
	m.metersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "meters_active",
		Help:      "Metering streams that are pending or running",
	})
	m.metersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "meters_created_total",
		Help:      "Metering streams requested",
	})
	m.metersFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "meters_failed_total",
		Help:      "Metering streams that failed or were killed by the server",
	})
	m.metersRelease = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "meters_released_total",
		Help:      "Metering streams released by the client",
	})
	m.peakSamples = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "peak_samples_total",
		Help:      "Peak samples applied to the cache",
	})
	m.dropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "fragments_dropped_total",
			Help:      "Audio fragments discarded without a peak update",
		},
		[]string{"reason"},
	)
	m.sessionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "session_state",
		Help:      "Current session state (0 unconnected, 4 ready, 5 failed, 6 terminated)",
	})

	m.collectors = []prometheus.Collector{
		m.objects, m.events, m.fetchErrors,
		m.metersActive, m.metersCreated, m.metersFailed, m.metersRelease,
		m.peakSamples, m.dropped, m.sessionState,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

func (m *Metrics) setObjects(k Kind, n int) {
	if m == nil {
		return
	}
	m.objects.WithLabelValues(k.String()).Set(float64(n))
}

func (m *Metrics) event(facility, typ string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(facility, typ).Inc()
}

func (m *Metrics) fetchFailed(k Kind) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) meterCreated() {
	if m == nil {
		return
	}
	m.metersCreated.Inc()
	m.metersActive.Inc()
}

// meterFailed counts a stream that ended without being released.
func (m *Metrics) meterFailed() {
	if m == nil {
		return
	}
	m.metersFailed.Inc()
	m.metersActive.Dec()
}

func (m *Metrics) meterReleased() {
	if m == nil {
		return
	}
	m.metersRelease.Inc()
	m.metersActive.Dec()
}

func (m *Metrics) peakSample() {
	if m == nil {
		return
	}
	m.peakSamples.Inc()
}

func (m *Metrics) fragmentDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.sessionState.Set(float64(s))
}
