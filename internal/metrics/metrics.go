package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProbeRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "failoverd_probe_rounds_total",
		Help: "Probe rounds started by the scheduler",
	})

	TargetsDown = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "failoverd_target_down",
		Help: "1 when the target's latest verdict is down",
	}, []string{"target"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "failoverd_transitions_total",
		Help: "State machine transitions by event kind",
	}, []string{"kind"})

	ConvergeAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "failoverd_converge_attempts_total",
		Help: "DNS record update attempts, including retries",
	})

	ConvergeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "failoverd_converge_failures_total",
		Help: "DNS record updates that exhausted their retry budget",
	})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "failoverd_notifications_sent_total",
		Help: "Alert notifications handed to the transport",
	})
)
