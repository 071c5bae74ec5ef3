package container

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector collects and manages bean metrics
type MetricsCollector interface {
	RecordDependencyCount(beanName string, count int)
	RecordCreation(beanName string, scope Scope, duration time.Duration)
	RecordCreationFailure(beanName string)
	RecordDestroyDuration(beanName string, duration time.Duration)
	GetMetrics() map[string]*BeanMetrics
}

// BeanMetrics stores metrics for a bean
type BeanMetrics struct {
	Name            string
	CreateDuration  time.Duration
	DestroyDuration time.Duration
	Instances       int
	Failures        int
	DependencyCount int
}

// promCollectors are shared by every factory registered on the same Registerer
type promCollectors struct {
	instances *prometheus.CounterVec
	failures  prometheus.Counter
	creation  prometheus.Histogram
}

func newPromCollectors(reg prometheus.Registerer) (*promCollectors, error) {
	c := &promCollectors{
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goboot_bean_instances_total",
			Help: "Total number of bean instances created, by scope.",
		}, []string{"scope"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goboot_bean_creation_failures_total",
			Help: "Total number of failed bean creations.",
		}),
		creation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goboot_bean_creation_seconds",
			Help:    "Time spent creating a single bean, including its dependencies.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	var err error
	c.instances, err = registerOrExisting(reg, c.instances)
	if err != nil {
		return nil, err
	}
	c.failures, err = registerOrExisting(reg, c.failures)
	if err != nil {
		return nil, err
	}
	c.creation, err = registerOrExisting(reg, c.creation)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// registerOrExisting registers c, reusing an identical collector that is already registered
func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// defaultMetricsCollector implements MetricsCollector
type defaultMetricsCollector struct {
	metrics map[string]*BeanMetrics
	mu      sync.RWMutex
	enabled bool
	prom    *promCollectors
}

var _ MetricsCollector = (*defaultMetricsCollector)(nil)

func newMetricsCollector(enabled bool, prom *promCollectors) *defaultMetricsCollector {
	return &defaultMetricsCollector{
		metrics: make(map[string]*BeanMetrics),
		enabled: enabled,
		prom:    prom,
	}
}

func (c *defaultMetricsCollector) ensureMetricExists(beanName string) *BeanMetrics {
	m, exists := c.metrics[beanName]
	if !exists {
		m = &BeanMetrics{Name: beanName}
		c.metrics[beanName] = m
	}
	return m
}

func (c *defaultMetricsCollector) RecordDependencyCount(beanName string, count int) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureMetricExists(beanName).DependencyCount = count
}

func (c *defaultMetricsCollector) RecordCreation(beanName string, scope Scope, duration time.Duration) {
	if c.prom != nil {
		if scope == "" {
			scope = ScopeSingleton
		}
		c.prom.instances.WithLabelValues(string(scope)).Inc()
		c.prom.creation.Observe(duration.Seconds())
	}
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.ensureMetricExists(beanName)
	m.CreateDuration = duration
	m.Instances++
}

func (c *defaultMetricsCollector) RecordCreationFailure(beanName string) {
	if c.prom != nil {
		c.prom.failures.Inc()
	}
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureMetricExists(beanName).Failures++
}

func (c *defaultMetricsCollector) RecordDestroyDuration(beanName string, duration time.Duration) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureMetricExists(beanName).DestroyDuration = duration
}

func (c *defaultMetricsCollector) GetMetrics() map[string]*BeanMetrics {
	if !c.enabled {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	// Create a copy to avoid races
	result := make(map[string]*BeanMetrics, len(c.metrics))
	for k, v := range c.metrics {
		cp := *v
		result[k] = &cp
	}

	return result
}
