package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quartz",
		Subsystem: "net",
		Name:      "active_connections",
		Help:      "Currently open client connections.",
	})

	packetsIn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quartz",
		Subsystem: "net",
		Name:      "packets_in_total",
		Help:      "Inbound packets decoded.",
	})

	packetsOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quartz",
		Subsystem: "net",
		Name:      "packets_out_total",
		Help:      "Outbound packets written.",
	})

	bytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quartz",
		Subsystem: "net",
		Name:      "bytes_in_total",
		Help:      "Inbound payload bytes after deframing.",
	})

	bytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quartz",
		Subsystem: "net",
		Name:      "bytes_out_total",
		Help:      "Outbound payload bytes before framing.",
	})

	loginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quartz",
		Subsystem: "net",
		Name:      "login_failures_total",
		Help:      "Login attempts rejected before reaching play.",
	})

	legacyPings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quartz",
		Subsystem: "net",
		Name:      "legacy_pings_total",
		Help:      "Legacy 0xFE status probes answered.",
	})
)
