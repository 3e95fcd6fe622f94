package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "chat_relay"

	eventTypeLabel = "event_type"
	reasonLabel    = "reason"
)

// Metrics groups every collector of the relay. Each instance owns its
// collectors so that tests can register them on a private registry.
type Metrics struct {
	ActiveConnections   prometheus.Gauge
	ActiveRooms         prometheus.Gauge
	DispatchedEvents    *prometheus.CounterVec
	Deliveries          prometheus.Counter
	DeliveryFailures    prometheus.Counter
	SetupRejections     *prometheus.CounterVec
	PersistedMessages   prometheus.Counter
	PersistenceFailures prometheus.Counter
	RecoveredPanics     prometheus.Counter

	ProcessCPUPercent prometheus.Gauge
	ProcessRSSBytes   prometheus.Gauge
	ProcessNumThreads prometheus.Gauge
	ProcessGoroutines prometheus.Gauge
	BadgerGCCollected prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "number of connections registered in a room",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "number of rooms with at least one connection",
		}),
		DispatchedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_events_total",
			Help:      "events handed to the fan-out dispatcher",
		}, []string{eventTypeLabel}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "payloads enqueued on a destination connection",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "destinations skipped during fan-out",
		}),
		SetupRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_rejections_total",
			Help:      "connections closed before reaching the active state",
		}, []string{reasonLabel}),
		PersistedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persisted_messages_total",
			Help:      "inbound messages stored in the history",
		}),
		PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "inbound messages the history refused",
		}),
		RecoveredPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_panics_total",
			Help:      "panics recovered while handling a connection",
		}),
		ProcessCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "cpu usage of the relay process",
		}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "resident memory of the relay process",
		}),
		ProcessNumThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_threads",
			Help:      "os threads of the relay process",
		}),
		ProcessGoroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_goroutines",
			Help:      "live goroutines",
		}),
		BadgerGCCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badger_value_log_gc_total",
			Help:      "value log files rewritten by the garbage collector",
		}),
	}
}

// Register adds every collector to r. Usually prometheus.DefaultRegisterer in main.
func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.ActiveConnections,
		m.ActiveRooms,
		m.DispatchedEvents,
		m.Deliveries,
		m.DeliveryFailures,
		m.SetupRejections,
		m.PersistedMessages,
		m.PersistenceFailures,
		m.RecoveredPanics,
		m.ProcessCPUPercent,
		m.ProcessRSSBytes,
		m.ProcessNumThreads,
		m.ProcessGoroutines,
		m.BadgerGCCollected,
	)
}
