package collector

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes counted per notice.
const (
	resultQueued  = "queued"
	resultSent    = "sent"
	resultFailed  = "failed"
	resultDropped = "dropped"
)

type metrics struct {
	notices *prometheus.CounterVec
}

// newMetrics registers the collector counters with reg. A counter that is
// already registered, e.g. by an earlier Notifier in the same process, is
// reused.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	notices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faultctx",
		Subsystem: "collector",
		Name:      "notices_total",
		Help:      "Fault notices by delivery result.",
	}, []string{"result"})

	if err := reg.Register(notices); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}

		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		notices = existing
	}

	for _, r := range []string{resultQueued, resultSent, resultFailed, resultDropped} {
		notices.WithLabelValues(r)
	}

	return &metrics{notices: notices}, nil
}

func (m *metrics) inc(result string) {
	m.notices.WithLabelValues(result).Inc()
}
