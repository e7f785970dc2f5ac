package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks the subscriber lifecycle: signups, confirmations and the
// outcome of every confirmation email attempt.
type Metrics struct {
	SubscribersCreated   prometheus.Counter
	SubscribersConfirmed prometheus.Counter
	ConfirmationEmails   *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
}

// New registers all metrics on reg. Each application instance normally gets
// its own registry. When reg already holds these collectors, for example two
// apps sharing one registry, the existing ones are reused and both instances
// record into the same series.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		SubscribersCreated: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subscribers_created_total",
			Help: "Total number of subscribers persisted in the unconfirmed state",
		})),
		SubscribersConfirmed: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subscribers_confirmed_total",
			Help: "Total number of subscribers confirmed by activation token",
		})),
		ConfirmationEmails: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confirmation_emails_total",
			Help: "Confirmation email attempts by result (sent, failed)",
		}, []string{"result"})),
		OperationDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subscriber_operation_duration_seconds",
			Help:    "Duration of subscriber lifecycle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"})),
	}
}

// register panics on conflicting descriptors, like promauto, but hands back
// the collector already registered under the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) IncrementCreated() {
	m.SubscribersCreated.Inc()
}

func (m *Metrics) IncrementConfirmed() {
	m.SubscribersConfirmed.Inc()
}

func (m *Metrics) RecordEmail(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.ConfirmationEmails.WithLabelValues(result).Inc()
}

// ObserveOperation records the duration of operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
