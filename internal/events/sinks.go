package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
)

// LoggerSink writes events through the zap logger.
type LoggerSink struct{}

func (LoggerSink) Raise(ctx context.Context, e Event) {
	log := logger.From(ctx).With(
		logger.Component("events"),
		logger.String("event", e.Name),
		logger.String("category", e.Category),
		logger.Bool("success", e.Success),
	)
	if e.ClientID != "" {
		log = log.With(logger.ClientID(e.ClientID))
	}
	if e.SubjectID != "" {
		log = log.With(logger.SubjectID(e.SubjectID))
	}
	if e.Success {
		log.Info(e.Name)
		return
	}
	log.Warn(e.Name, logger.String("message", e.Message))
}

// PrometheusSink counts events by name and outcome.
type PrometheusSink struct {
	counter *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	return &PrometheusSink{
		counter: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatejohn",
			Name:      "events_total",
			Help:      "Domain events raised by the validation engine.",
		}, []string{"event", "success"}),
	}
}

func (s *PrometheusSink) Raise(ctx context.Context, e Event) {
	outcome := "false"
	if e.Success {
		outcome = "true"
	}
	s.counter.WithLabelValues(e.Name, outcome).Inc()
}
