// Package metrics exports the thread pool and the demo server as Prometheus
// collectors.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utkarsh5026/threadpool/internal/server"
	"github.com/utkarsh5026/threadpool/pool"
)

// StatsSource is anything that can report pool statistics.
type StatsSource interface {
	Stats() pool.Stats
}

// Metrics holds Prometheus collectors.
type Metrics struct {
	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsPanicked  prometheus.Counter
	JobLatency    prometheus.Histogram

	ConnsAccepted prometheus.Counter
	ConnsServed   *prometheus.CounterVec
	ConnLatency   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_started_total",
			Help:      "Total number of jobs picked up by a worker",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that returned, panicking or not",
		}),
		JobsPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that panicked",
		}),
		JobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
		ConnsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted TCP connections",
		}),
		ConnsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_served_total",
			Help:      "Connections answered, by route and outcome",
		}, []string{"route", "outcome"}),
		ConnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connection_duration_seconds",
			Help:      "Time from reading the request to flushing the response",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	err := registerAll(reg,
		m.JobsStarted,
		m.JobsCompleted,
		m.JobsPanicked,
		m.JobLatency,
		m.ConnsAccepted,
		m.ConnsServed,
		m.ConnLatency,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterPool exports live gauges read from src on every scrape.
func RegisterPool(reg prometheus.Registerer, namespace string, src StatsSource) error {
	gauge := func(name, help string, value func(pool.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(src.Stats()) })
	}

	return registerAll(reg,
		gauge("workers", "Number of workers the pool was built with",
			func(s pool.Stats) float64 { return float64(s.Size) }),
		gauge("workers_live", "Workers currently inside their loop",
			func(s pool.Stats) float64 { return float64(s.Live) }),
		gauge("workers_busy", "Workers currently running a job",
			func(s pool.Stats) float64 { return float64(s.Busy) }),
		gauge("queue_length", "Messages waiting in the shared queue",
			func(s pool.Stats) float64 { return float64(s.Queued) }),
	)
}

func registerAll(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	var errs []error
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PoolOptions returns the pool hooks that feed m.
func (m *Metrics) PoolOptions() []pool.Option {
	return []pool.Option{
		pool.WithBeforeJob(m.beforeJob),
		pool.WithAfterJob(m.afterJob),
	}
}

func (m *Metrics) beforeJob(int) {
	m.JobsStarted.Inc()
}

func (m *Metrics) afterJob(_ int, elapsed time.Duration, err error) {
	m.JobsCompleted.Inc()
	m.JobLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.JobsPanicked.Inc()
	}
}

// ConnAccepted implements server.Observer.
func (m *Metrics) ConnAccepted() {
	m.ConnsAccepted.Inc()
}

// ConnServed implements server.Observer.
func (m *Metrics) ConnServed(route server.Route, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ConnsServed.WithLabelValues(string(route), outcome).Inc()
	m.ConnLatency.WithLabelValues(string(route)).Observe(elapsed.Seconds())
}

var _ server.Observer = (*Metrics)(nil)
