package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	connectionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "termfeed_connection_state",
		Help: "Session state: 0=disconnected 1=connecting 2=connected 3=reconnecting",
	})

	connectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "termfeed_connects_total",
		Help: "Successful WebSocket connects, including reconnects",
	})

	reconnectAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "termfeed_reconnect_attempts_total",
		Help: "Reconnect attempts after a dropped session",
	})

	heartbeatLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "termfeed_heartbeat_latency_seconds",
		Help:    "Ping to pong round-trip time",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
	})

	messagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "termfeed_messages_received_total",
		Help: "Inbound frames by wire type",
	}, []string{"type"})

	decodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "termfeed_decode_errors_total",
		Help: "Frames that failed to decode",
	})

	handlerPanicsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "termfeed_handler_panics_total",
		Help: "Subscriber callbacks that panicked, by wire type",
	}, []string{"type"})

	subscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "termfeed_subscriptions_active",
		Help: "Channels currently held by the subscription registry",
	})

	restRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "termfeed_rest_requests_total",
		Help: "REST snapshot requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	restLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "termfeed_rest_request_seconds",
		Help:    "REST request latency by endpoint",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~20s
	}, []string{"endpoint"})

	reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "termfeed_reconciliations_total",
		Help: "Reconciliation merges by channel",
	}, []string{"channel"})

	tradesDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "termfeed_trades_deduped_total",
		Help: "Pulled trades dropped because their id was already present",
	})

	staleSnapshots = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "termfeed_stale_snapshots_total",
		Help: "Pulled snapshots discarded because a newer refresh superseded them",
	})
)

func init() {
	prometheus.MustRegister(
		connectionState,
		connectsTotal,
		reconnectAttemptsTotal,
		heartbeatLatency,
		messagesReceived,
		decodeErrorsTotal,
		handlerPanicsTotal,
		subscriptionsActive,
		restRequests,
		restLatency,
		reconciliations,
		tradesDeduped,
		staleSnapshots,
	)
}

// SetConnectionState records the session state machine's current state.
func SetConnectionState(state int) {
	connectionState.Set(float64(state))
}

// Connected counts one successful connect.
func Connected() {
	connectsTotal.Inc()
}

// ReconnectAttempt counts one reconnect attempt.
func ReconnectAttempt() {
	reconnectAttemptsTotal.Inc()
}

// ObserveHeartbeat records one ping round-trip.
func ObserveHeartbeat(rtt time.Duration) {
	heartbeatLatency.Observe(rtt.Seconds())
}

// MessageReceived counts one decoded inbound frame.
func MessageReceived(wireType string) {
	messagesReceived.WithLabelValues(wireType).Inc()
}

// DecodeError counts one undecodable frame.
func DecodeError() {
	decodeErrorsTotal.Inc()
}

// HandlerPanic counts one recovered subscriber panic.
func HandlerPanic(wireType string) {
	handlerPanicsTotal.WithLabelValues(wireType).Inc()
}

// SetActiveSubscriptions records the registry size.
func SetActiveSubscriptions(n int) {
	subscriptionsActive.Set(float64(n))
}

// RestRequest counts one REST call and its latency.
func RestRequest(endpoint, outcome string, elapsed time.Duration) {
	restRequests.WithLabelValues(endpoint, outcome).Inc()
	restLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Reconciled counts one recomputed push/pull merge for a channel.
func Reconciled(channel string) {
	reconciliations.WithLabelValues(channel).Inc()
}

// TradesDeduped counts pulled trades dropped as duplicates.
func TradesDeduped(n int) {
	tradesDeduped.Add(float64(n))
}

// StaleSnapshot counts one discarded out-of-generation snapshot.
func StaleSnapshot() {
	staleSnapshots.Inc()
}
