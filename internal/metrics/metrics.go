package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crodbot", Name: "updates_total", Help: "Processed telegram updates",
	})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crodbot", Name: "handler_errors_total", Help: "Handler errors",
	})
	LinkOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crodbot", Name: "link_outcomes_total", Help: "Linking attempts by role and outcome",
	}, []string{"role", "outcome"})
	NotifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crodbot", Name: "notify_failures_total", Help: "Undelivered operational notifications",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crodbot", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(BotUpdates, HandlerErrors, LinkOutcomes, NotifyFailures, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveLink(role, outcome string) { LinkOutcomes.WithLabelValues(role, outcome).Inc() }
