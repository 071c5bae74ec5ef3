package container

import "reflect"

// BeanFactory is the interface used by clients and beans to look up beans
type BeanFactory interface {
	// GetBean returns the bean registered under name or one of its aliases
	GetBean(name string) (any, error)
	// ContainsBean checks if a definition or singleton exists for name
	ContainsBean(name string) bool
	// IsSingleton reports whether name resolves to a shared instance
	IsSingleton(name string) (bool, error)
	// IsPrototype reports whether every lookup of name creates a new instance
	IsPrototype(name string) (bool, error)
	// GetType returns the Go type produced for name without creating it when possible
	GetType(name string) (reflect.Type, error)
	// GetAliases returns the aliases of name
	GetAliases(name string) []string
}

// ListableBeanFactory can enumerate its beans
type ListableBeanFactory interface {
	BeanFactory
	// BeanDefinitionNames returns all definition names in registration order
	BeanDefinitionNames() []string
	// BeanDefinitionCount returns the number of registered definitions
	BeanDefinitionCount() int
	// GetBeanNamesForType returns names of non-abstract beans assignable to t
	GetBeanNamesForType(t reflect.Type) []string
}

// ConfigurableBeanFactory is the full contract used during bootstrap
type ConfigurableBeanFactory interface {
	ListableBeanFactory
	DefinitionRegistry
	// RegisterSingleton registers an already constructed object
	RegisterSingleton(name string, obj any) error
	// AddBeanPostProcessor adds a processor applied to every bean created afterwards
	AddBeanPostProcessor(p BeanPostProcessor)
	// PreInstantiateSingletons creates all non-lazy singletons
	PreInstantiateSingletons() error
	// DestroySingletons runs destroy callbacks and clears the singleton cache
	DestroySingletons() error
}
