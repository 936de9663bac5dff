package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "home_sensor_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	readingsTotal *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec
	ingestErrors  *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	notifyTotal   *prometheus.CounterVec
	commandsTotal *prometheus.CounterVec
	liveClients   prometheus.Gauge
	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers the service metrics with the default registry. Calls after the first
// are no-ops; recording helpers are no-ops until Init runs.
func Init() {
	registerOnce.Do(func() {
		readingsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_total",
				Help: "Total sensor readings by source and result",
			},
			[]string{"source", "result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Reading ingestion latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total swallowed ingestion side-effect failures by stage",
			},
			[]string{"stage"},
		)
		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total derived alerts by type and severity",
			},
			[]string{"type", "severity"},
		)
		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification attempts by channel and result",
			},
			[]string{"channel", "result"},
		)
		commandsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_total",
				Help: "Total device commands by outcome",
			},
			[]string{"outcome"},
		)
		liveClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "live_subscribers",
				Help: "Connected live-update subscribers",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "log_export_total",
				Help: "Total log exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "log_export_latency_seconds",
				Help:    "Log export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)

		prometheus.MustRegister(
			readingsTotal,
			ingestLatency,
			ingestErrors,
			alertsTotal,
			notifyTotal,
			commandsTotal,
			liveClients,
			exportTotal,
			exportLatency,
		)
	})
}

// ObserveReading records one ingested reading.
func ObserveReading(source, result string, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}
	if readingsTotal != nil {
		readingsTotal.WithLabelValues(source, result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// IncIngestError counts a failure that ingestion logged and swallowed.
func IncIngestError(stage string) {
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(stage).Inc()
	}
}

// IncAlert counts a derived alert.
func IncAlert(alertType, severity string) {
	if alertsTotal != nil {
		alertsTotal.WithLabelValues(alertType, severity).Inc()
	}
}

// IncNotification counts a notification attempt.
func IncNotification(channel, result string) {
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(channel, result).Inc()
	}
}

// AddCommands counts device commands by outcome.
func AddCommands(outcome string, n int) {
	if n <= 0 {
		return
	}
	if commandsTotal != nil {
		commandsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// SetLiveSubscribers sets the connected subscriber gauge.
func SetLiveSubscribers(n int) {
	if liveClients != nil {
		liveClients.Set(float64(n))
	}
}

// ObserveExport records a log export.
func ObserveExport(format string, err error, duration time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format).Observe(duration.Seconds())
	}
}

// Exported label values for callers.
const (
	ReadingAccepted    = "accepted"
	ReadingUnknownRoom = "unknown_room"
	ReadingRejected    = "rejected"

	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"

	CommandQueued    = "queued"
	CommandDelivered = "delivered"

	StageLog   = "log"
	StageAlert = "alert"
	StageRoom  = "room"
)
