package jobs

import "github.com/prometheus/client_golang/prometheus"

// Метрики фоновых задач; метка job — имя, под которым задача запущена в Runner.
var (
	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crodbot",
		Subsystem: "job",
		Name:      "runs_total",
		Help:      "Запуски фоновых задач.",
	}, []string{"job"})

	jobErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crodbot",
		Subsystem: "job",
		Name:      "errors_total",
		Help:      "Запуски, завершившиеся ошибкой или паникой.",
	}, []string{"job"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crodbot",
		Subsystem: "job",
		Name:      "duration_seconds",
		Help:      "Длительность запуска задачи.",
		// бэкап идёт минутами
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"job"})

	jobLastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "crodbot",
		Subsystem: "job",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix-время последнего успешного запуска; алерт на бэкап смотрит сюда.",
	}, []string{"job"})
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobDuration, jobLastSuccess)
}
