package container

import "time"

// PreInstantiateSingletons creates every non-abstract, non-lazy singleton
// in registration order. Depends-on declarations are validated first.
func (f *Factory) PreInstantiateSingletons() error {
	if err := f.ValidateDependencies(); err != nil {
		return err
	}

	f.logger.Info("Pre-instantiating singletons", "definitions", f.registry.BeanDefinitionCount())
	start := time.Now()
	created := 0

	for _, name := range f.registry.BeanDefinitionNames() {
		def, err := f.mergedDefinition(name)
		if err != nil {
			return err
		}
		if def.Abstract || !def.IsSingleton() || def.LazyInit {
			continue
		}
		if _, ok := f.singleton(name); ok {
			continue
		}
		if _, err := f.GetBean(name); err != nil {
			return err
		}
		created++
	}

	f.logger.Info("Singletons instantiated",
		"count", created,
		"time_ms", time.Since(start).Milliseconds())
	return nil
}

// GetInitOrder returns the names of cached singletons in creation order
func (f *Factory) GetInitOrder() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	// Return a copy to avoid external modification
	result := make([]string, len(f.singletonOrder))
	copy(result, f.singletonOrder)
	return result
}
