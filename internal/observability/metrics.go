package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the orchestrator.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	WakewordEvents     *prometheus.CounterVec
	IntentDispatches   *prometheus.CounterVec
	PersonaSwitches    *prometheus.CounterVec
	TrustScore         prometheus.Histogram
	RoutingFailures    *prometheus.CounterVec
	MediaRecommends    *prometheus.CounterVec
	MQTTPublishErrors  *prometheus.CounterVec
	TurnStageLatency   *prometheus.HistogramVec
	turnStageWindow    *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active voice sessions with a live speaker binding.",
		}),
		WakewordEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wakeword_events_total",
			Help:      "Wakeword detections by resolution outcome (accepted, debounced, collision_lost).",
		}, []string{"outcome"}),
		IntentDispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_dispatches_total",
			Help:      "Dispatched intents by intent name and result.",
		}, []string{"intent", "result"}),
		PersonaSwitches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persona_switches_total",
			Help:      "Persona mode transitions by destination mode.",
		}, []string{"mode"}),
		TrustScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trust_score",
			Help:      "Distribution of computed trust scores.",
			Buckets:   []float64{10, 20, 30, 40, 55, 65, 75, 85, 95, 100},
		}),
		RoutingFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_failures_total",
			Help:      "Voice output routing failures by reason.",
		}, []string{"reason"}),
		MediaRecommends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_recommendations_total",
			Help:      "Media recommendation requests by outcome.",
		}, []string{"outcome"}),
		MQTTPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publish_errors_total",
			Help:      "MQTT publish errors by topic class.",
		}, []string{"topic_class"}),
		TurnStageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_stage_latency_ms",
			Help:      "Orchestration pipeline stage latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 400, 800},
		}, []string{"stage"}),
		turnStageWindow: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	if m == nil || m.TurnStageLatency == nil {
		return
	}
	ms :=float64(d.Microseconds()) / 1000.0
	m.TurnStageLatency.WithLabelValues(stage).Observe(ms)
	m.turnStageWindow.Observe(stage, ms)
}

func (m *Metrics) ObserveWakeword(outcome string) {
	if m == nil || m.WakewordEvents == nil {
		return
	}
	m.WakewordEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveIntentDispatch(intent, result string) {
	if m == nil || m.IntentDispatches == nil {
		return
	}
	m.IntentDispatches.WithLabelValues(intent, result).Inc()
}

func (m *Metrics) ObservePersonaSwitch(mode string) {
	if m == nil || m.PersonaSwitches == nil {
		return
	}
	m.PersonaSwitches.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveTrustScore(score float64) {
	if m == nil || m.TrustScore == nil {
		return
	}
	m.TrustScore.Observe(score)
}

func (m *Metrics) ObserveRoutingFailure(reason string) {
	if m == nil || m.RoutingFailures == nil {
		return
	}
	m.RoutingFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveMediaRecommend(outcome string) {
	if m == nil || m.MediaRecommends == nil {
		return
	}
	m.MediaRecommends.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveMQTTPublishError(topicClass string) {
	if m == nil || m.MQTTPublishErrors == nil {
		return
	}
	m.MQTTPublishErrors.WithLabelValues(topicClass).Inc()
}

func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m.turnStageWindow == nil {
		return TurnStageSnapshot{}
	}
	return m.turnStageWindow.Snapshot()
}

func (m *Metrics) ResetTurnStages() {
	if m == nil || m.turnStageWindow == nil {
		return
	}
	m.turnStageWindow.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
