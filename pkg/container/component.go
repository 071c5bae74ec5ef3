package container

import "context"

// BeanNameAware beans are told the name they were registered under
type BeanNameAware interface {
	SetBeanName(name string)
}

// BeanFactoryAware beans receive the factory that created them. Lookups made
// through it while the bean is being created take part in that creation, so
// references back into the graph resolve without deadlocking.
type BeanFactoryAware interface {
	SetBeanFactory(factory BeanFactory)
}

// InitializingBean is called after all properties have been set
type InitializingBean interface {
	AfterPropertiesSet() error
}

// DisposableBean is called when the factory destroys its singletons
type DisposableBean interface {
	Destroy() error
}

// RunnableBean is a singleton with a main loop. The application runs it in
// a managed goroutine until the context is cancelled.
type RunnableBean interface {
	Run(ctx context.Context) error
}

// BeanPostProcessor can modify or replace beans around their initialization
type BeanPostProcessor interface {
	// PostProcessBeforeInitialization runs before AfterPropertiesSet and the init method
	PostProcessBeforeInitialization(bean any, name string) (any, error)
	// PostProcessAfterInitialization runs after the init method
	PostProcessAfterInitialization(bean any, name string) (any, error)
}

// BeanPostProcessorFuncs adapts plain functions to BeanPostProcessor; nil
// functions pass the bean through unchanged
type BeanPostProcessorFuncs struct {
	Before func(bean any, name string) (any, error)
	After  func(bean any, name string) (any, error)
}

func (p BeanPostProcessorFuncs) PostProcessBeforeInitialization(bean any, name string) (any, error) {
	if p.Before == nil {
		return bean, nil
	}
	return p.Before(bean, name)
}

func (p BeanPostProcessorFuncs) PostProcessAfterInitialization(bean any, name string) (any, error) {
	if p.After == nil {
		return bean, nil
	}
	return p.After(bean, name)
}

var _ BeanPostProcessor = BeanPostProcessorFuncs{}
