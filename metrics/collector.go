// Package metrics exposes Prometheus collectors for the fetch queue, task
// transitions, verification outcomes and fetch latency.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/artifex/model"
	"github.com/viant/artifex/runtime/task"
	"github.com/viant/artifex/service/messaging/dedup"
	"github.com/viant/artifex/service/verifier"
)

const defaultNamespace = "artifex"

// Collector owns artifex metrics and the registry they are registered with
type Collector struct {
	queueOps      *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	transitions   *prometheus.CounterVec
	verifications *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// Registry returns the registry holding all collectors
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// QueueHook records dedup queue mutations
func (c *Collector) QueueHook() dedup.Hook {
	return func(op dedup.Op, depth int) {
		c.queueOps.WithLabelValues(string(op)).Inc()
		c.queueDepth.Set(float64(depth))
	}
}

// OnTransition counts task state transitions
func (c *Collector) OnTransition(_ context.Context, _ *task.Task, transition *task.Transition) {
	from := string(transition.From)
	if from == "" {
		from = "none"
	}
	c.transitions.WithLabelValues(from, string(transition.To), string(transition.Reason)).Inc()
}

// ObserveVerification counts completed verification records
func (c *Collector) ObserveVerification(record *verifier.Record) {
	status, reason, _ := record.State()
	c.verifications.WithLabelValues(string(status), string(reason)).Inc()
}

// ObserveFetch records fetch latency by outcome
func (c *Collector) ObserveFetch(_ *model.FetchTask, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.fetchDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// NewCollector creates collectors registered with a new registry
func NewCollector(namespace string) (*Collector, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	ret := &Collector{registry: prometheus.NewRegistry()}
	ret.queueOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_queue_operations_total",
			Help:      "Total number of fetch queue operations",
		},
		[]string{"op"},
	)
	ret.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fetch_queue_depth",
		Help:      "Number of distinct resources waiting to be fetched",
	})
	ret.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_transitions_total",
			Help:      "Total number of task state transitions",
		},
		[]string{"from_state", "to_state", "reason"},
	)
	ret.verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of completed artifact verifications",
		},
		[]string{"status", "reason"},
	)
	ret.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of artifact fetches",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	var errs []error
	for _, collector := range []prometheus.Collector{ret.queueOps, ret.queueDepth, ret.transitions, ret.verifications, ret.fetchDuration} {
		errs = append(errs, ret.registry.Register(collector))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ret, nil
}
