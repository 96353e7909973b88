// Package metrics defines the process-wide Prometheus collectors. Collectors
// are registered on the default registry; the app mounts promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts credential exchanges by terminal outcome:
	// success, invalid_credentials, network_failure, rejected_in_flight,
	// stale.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shieldgate",
		Subsystem: "machine",
		Name:      "login_attempts_total",
		Help:      "Credential exchange attempts by outcome.",
	}, []string{"outcome"})

	// Logouts counts logout transitions.
	Logouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shieldgate",
		Subsystem: "machine",
		Name:      "logouts_total",
		Help:      "Logout transitions.",
	})

	// RoleConflicts counts credential logins where the server-reported role
	// overrode the submitted institution kind.
	RoleConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shieldgate",
		Subsystem: "machine",
		Name:      "role_conflicts_total",
		Help:      "Logins where the server-reported role overrode the submitted kind.",
	})

	// CallbackBranches counts callback interpretations by the branch taken:
	// rehydrated, federated, empty.
	CallbackBranches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shieldgate",
		Subsystem: "callback",
		Name:      "interpretations_total",
		Help:      "Startup/bootstrap callback interpretations by branch.",
	}, []string{"branch"})

	// CorruptSessions counts persisted records that failed to decode and were
	// degraded to the logged-out session. The failure is absorbed; this is
	// its only externally visible trace.
	CorruptSessions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shieldgate",
		Subsystem: "store",
		Name:      "corrupt_records_total",
		Help:      "Persisted session records treated as empty because they were inconsistent.",
	})

	// EventClients tracks currently connected session-event subscribers.
	EventClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shieldgate",
		Subsystem: "events",
		Name:      "clients",
		Help:      "Connected WebSocket session-event subscribers.",
	})
)
