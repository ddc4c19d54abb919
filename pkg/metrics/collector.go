package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every Prometheus metric the call-stream pipeline
// publishes. It owns its own registry rather than using the global
// DefaultRegisterer so tests can create independent collectors.
type Collector struct {
	registry *prometheus.Registry

	callsActive             *prometheus.GaugeVec
	callsTotal              *prometheus.CounterVec
	signalingRecordsTotal   *prometheus.CounterVec
	voiceFramesTotal        prometheus.Counter
	bytesIngestedTotal      prometheus.Counter
	busDropsTotal           prometheus.Counter
	protocolErrorsTotal     prometheus.Counter
	storageErrorsTotal      prometheus.Counter
	childProcessErrorsTotal prometheus.Counter
	resourceExhaustedTotal  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on a fresh
// registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		callsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callstream_calls_active",
			Help: "Number of calls currently in the Active state, by call family.",
		}, []string{"family"}),

		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callstream_calls_total",
			Help: "Total calls that reached the Active state, by call family.",
		}, []string{"family"}),

		signalingRecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callstream_signaling_records_total",
			Help: "Signaling records decoded by the Frame Parser, by event kind.",
		}, []string{"kind"}),

		voiceFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstream_voice_frames_total",
			Help: "G.711 A-law voice frames decoded by the Frame Parser.",
		}),

		bytesIngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstream_bytes_ingested_total",
			Help: "Bytes received on the ingress UDP socket.",
		}),

		busDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstream_bus_drops_total",
			Help: "Internal Bus messages dropped because a subscriber buffer was full.",
		}),

		protocolErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstream_protocol_errors_total",
			Help: "Unrecognized signatures, unknown message ids, or truncated records.",
		}),

		storageErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstream_storage_errors_total",
			Help: "Database insert/update failures in the Persister.",
		}),

		childProcessErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstream_child_process_errors_total",
			Help: "MP3 encoder or player child-process launch or non-zero-exit failures.",
		}),

		resourceExhaustedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callstream_resource_exhausted_total",
			Help: "Media Router requests rejected for lack of a free feeder or player, by resource type.",
		}, []string{"resource"}),
	}

	c.registry.MustRegister(
		c.callsActive,
		c.callsTotal,
		c.signalingRecordsTotal,
		c.voiceFramesTotal,
		c.bytesIngestedTotal,
		c.busDropsTotal,
		c.protocolErrorsTotal,
		c.storageErrorsTotal,
		c.childProcessErrorsTotal,
		c.resourceExhaustedTotal,
	)

	return c
}

// Registry exposes the underlying Prometheus registry for the metrics
// HTTP server.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// CallStarted records a call entering the Active state for the given
// family ("duplex", "simplex", "group").
func (c *Collector) CallStarted(family string) {
	c.callsActive.WithLabelValues(family).Inc()
	c.callsTotal.WithLabelValues(family).Inc()
}

// CallEnded records a call leaving the Active state.
func (c *Collector) CallEnded(family string) {
	c.callsActive.WithLabelValues(family).Dec()
}

// SignalingRecord records one decoded signaling event by its kind.
func (c *Collector) SignalingRecord(kind string) {
	c.signalingRecordsTotal.WithLabelValues(kind).Inc()
}

// VoiceFrame records one decoded G.711 A-law voice frame.
func (c *Collector) VoiceFrame() {
	c.voiceFramesTotal.Inc()
}

// BytesIngested records bytes received on the ingress socket.
func (c *Collector) BytesIngested(n int) {
	c.bytesIngestedTotal.Add(float64(n))
}

// BusDrop records a message dropped by a full subscriber buffer.
func (c *Collector) BusDrop() {
	c.busDropsTotal.Inc()
}

// ProtocolError records a ProtocolError-class event.
func (c *Collector) ProtocolError() {
	c.protocolErrorsTotal.Inc()
}

// StorageError records a StorageError-class event.
func (c *Collector) StorageError() {
	c.storageErrorsTotal.Inc()
}

// ChildProcessError records a ChildProcessError-class event.
func (c *Collector) ChildProcessError() {
	c.childProcessErrorsTotal.Inc()
}

// ResourceExhausted records a ResourceExhausted-class event for the given
// resource type ("feeder" or "player").
func (c *Collector) ResourceExhausted(resource string) {
	c.resourceExhaustedTotal.WithLabelValues(resource).Inc()
}
