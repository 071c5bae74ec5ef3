// Package container implements a bean factory: a registry of declarative
// bean definitions that creates, wires and destroys the objects they
// describe.
//
// Typical use mirrors the classic bootstrap sequence:
//
//	res := resource.NewClassPathResource("applicationContext.xml")
//	factory := container.New(nil)
//	r := reader.NewXMLReader(factory, reader.Options{})
//	if _, err := r.LoadBeanDefinitions(res); err != nil { ... }
//	student, err := container.GetBeanAs[*bean.Student](factory, "student")
package container

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Factory is the default ConfigurableBeanFactory
type Factory struct {
	id       string
	config   *Config
	logger   *slog.Logger
	types    *TypeRegistry
	env      *Environment
	registry *defaultDefinitionRegistry
	metrics  MetricsCollector

	mu             sync.RWMutex
	singletons     map[string]any
	creating       map[string]*pendingSingleton
	singletonOrder []string
	disposables    map[string]disposable
	dependents     map[string]map[string]bool
	postProcessors []BeanPostProcessor
}

// New creates an empty factory. A nil config uses DefaultConfig.
func New(cfg *Config) *Factory {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	types := cfg.Types
	if types == nil {
		types = Types
	}

	id := uuid.NewString()
	logger = logger.With("factory", id)

	metrics := cfg.Metrics
	if metrics == nil {
		var prom *promCollectors
		if cfg.MetricsRegisterer != nil {
			var err error
			prom, err = newPromCollectors(cfg.MetricsRegisterer)
			if err != nil {
				logger.Error("Failed to register bean metrics", "error", err)
				prom = nil
			}
		}
		metrics = newMetricsCollector(cfg.EnableMetrics, prom)
	}

	f := &Factory{
		id:             id,
		config:         cfg,
		logger:         logger,
		types:          types,
		env:            cfg.Environment,
		registry:       newDefinitionRegistry(cfg.AllowDefinitionOverriding, logger),
		metrics:        metrics,
		singletons:     make(map[string]any),
		creating:       make(map[string]*pendingSingleton),
		disposables:    make(map[string]disposable),
		dependents:     make(map[string]map[string]bool),
		postProcessors: append([]BeanPostProcessor(nil), cfg.PostProcessors...),
	}
	logger.Debug("Bean factory created")
	return f
}

// ID returns the unique identifier of this factory
func (f *Factory) ID() string {
	return f.id
}

// Environment returns the environment used for placeholders, or nil
func (f *Factory) Environment() *Environment {
	return f.env
}

// Logger returns the factory logger
func (f *Factory) Logger() *slog.Logger {
	return f.logger
}

// Metrics returns per-bean metrics, or nil when metrics are disabled
func (f *Factory) Metrics() map[string]*BeanMetrics {
	return f.metrics.GetMetrics()
}

// RegisterBeanDefinition registers def under name, dropping any cached
// instance of an overridden definition
func (f *Factory) RegisterBeanDefinition(name string, def *BeanDefinition) error {
	if err := f.registry.RegisterBeanDefinition(name, def); err != nil {
		return err
	}
	f.removeSingleton(name)
	return nil
}

func (f *Factory) RemoveBeanDefinition(name string) error {
	if err := f.registry.RemoveBeanDefinition(name); err != nil {
		return err
	}
	f.removeSingleton(name)
	return nil
}

func (f *Factory) GetBeanDefinition(name string) (*BeanDefinition, error) {
	return f.registry.GetBeanDefinition(name)
}

func (f *Factory) ContainsBeanDefinition(name string) bool {
	return f.registry.ContainsBeanDefinition(name)
}

func (f *Factory) BeanDefinitionNames() []string {
	return f.registry.BeanDefinitionNames()
}

func (f *Factory) BeanDefinitionCount() int {
	return f.registry.BeanDefinitionCount()
}

func (f *Factory) RegisterAlias(name, alias string) error {
	return f.registry.RegisterAlias(name, alias)
}

func (f *Factory) GetAliases(name string) []string {
	return f.registry.GetAliases(name)
}

// AddBeanPostProcessor adds a processor applied to beans created afterwards
func (f *Factory) AddBeanPostProcessor(p BeanPostProcessor) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.postProcessors = append(f.postProcessors, p)
}

// RegisterSingleton registers an already constructed object under name
func (f *Factory) RegisterSingleton(name string, obj any) error {
	if name == "" {
		return fmt.Errorf("bean name cannot be empty")
	}
	if obj == nil {
		return fmt.Errorf("cannot register nil singleton '%s'", name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.singletons[name]; exists {
		return fmt.Errorf("could not register object under bean name '%s': there is already an object bound", name)
	}
	f.logger.Info("Registering singleton", "bean", name, "type", fmt.Sprintf("%T", obj))
	f.addSingletonLocked(name, obj, "")
	return nil
}

func (f *Factory) singleton(name string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	obj, ok := f.singletons[name]
	return obj, ok
}

func (f *Factory) addSingleton(name string, obj any, destroyMethod string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.addSingletonLocked(name, obj, destroyMethod)
}

func (f *Factory) addSingletonLocked(name string, obj any, destroyMethod string) {
	f.singletons[name] = obj
	f.singletonOrder = append(f.singletonOrder, name)
	if _, ok := obj.(DisposableBean); ok || destroyMethod != "" {
		f.disposables[name] = disposable{bean: obj, destroyMethod: destroyMethod}
	}
}

func (f *Factory) removeSingleton(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.singletons[name]; !ok {
		return
	}
	delete(f.singletons, name)
	delete(f.disposables, name)
	for i, n := range f.singletonOrder {
		if n == name {
			f.singletonOrder = append(f.singletonOrder[:i], f.singletonOrder[i+1:]...)
			break
		}
	}
}

func (f *Factory) beanPostProcessors() []BeanPostProcessor {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]BeanPostProcessor(nil), f.postProcessors...)
}

var _ ConfigurableBeanFactory = (*Factory)(nil)
