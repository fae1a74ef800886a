package monitoring

import (
	"github.com/alicesotero/CoLab/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector holds the broker's metric instruments.
type PrometheusCollector struct {
	sessionsConnected prometheus.Gauge
	messagesRouted    prometheus.Counter
	messagesRejected  prometheus.Counter
	persistFailures   prometheus.Counter
	signalsRelayed    *prometheus.CounterVec
	roomMembers       *prometheus.GaugeVec
	historyReplay     prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "colab_sessions_connected",
			Help: "Number of live websocket sessions",
		}),

		messagesRouted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "colab_messages_routed_total",
			Help: "Total messages accepted and fanned out",
		}),

		messagesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "colab_messages_rejected_total",
			Help: "Total messages rejected before persistence",
		}),

		persistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "colab_history_persist_failures_total",
			Help: "Total history appends that failed while the message was still broadcast",
		}),

		signalsRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "colab_signals_relayed_total",
			Help: "Total signaling envelopes relayed, by kind",
		}, []string{"kind"}),

		roomMembers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "colab_room_members",
			Help: "Current member count per room",
		}, []string{"room"}),

		historyReplay: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "colab_history_replay_duration_seconds",
			Help:    "Duration of the history query served on room join",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

func (c *PrometheusCollector) SessionConnected()    { c.sessionsConnected.Inc() }
func (c *PrometheusCollector) SessionDisconnected() { c.sessionsConnected.Dec() }

func (c *PrometheusCollector) MessageRouted()   { c.messagesRouted.Inc() }
func (c *PrometheusCollector) MessageRejected() { c.messagesRejected.Inc() }
func (c *PrometheusCollector) PersistFailed()   { c.persistFailures.Inc() }

func (c *PrometheusCollector) SignalRelayed(kind domain.SignalKind) {
	c.signalsRelayed.WithLabelValues(string(kind)).Inc()
}

func (c *PrometheusCollector) ObserveHistoryReplay(seconds float64) {
	c.historyReplay.Observe(seconds)
}

// UpdateRoomMembers refreshes the per-room occupancy gauges.
func (c *PrometheusCollector) UpdateRoomMembers(counts map[domain.RoomName]int) {
	for room, count := range counts {
		c.roomMembers.WithLabelValues(string(room)).Set(float64(count))
	}
}
