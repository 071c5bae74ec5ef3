package container

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
)

// DefinitionRegistry manages bean definition registration and retrieval
type DefinitionRegistry interface {
	RegisterBeanDefinition(name string, def *BeanDefinition) error
	RemoveBeanDefinition(name string) error
	GetBeanDefinition(name string) (*BeanDefinition, error)
	ContainsBeanDefinition(name string) bool
	BeanDefinitionNames() []string
	BeanDefinitionCount() int
	RegisterAlias(name, alias string) error
	GetAliases(name string) []string
}

// defaultDefinitionRegistry implements DefinitionRegistry
type defaultDefinitionRegistry struct {
	definitions   map[string]*BeanDefinition
	names         []string
	aliases       map[string]string
	mu            sync.RWMutex
	allowOverride bool
	logger        *slog.Logger
}

func newDefinitionRegistry(allowOverride bool, logger *slog.Logger) *defaultDefinitionRegistry {
	return &defaultDefinitionRegistry{
		definitions:   make(map[string]*BeanDefinition),
		aliases:       make(map[string]string),
		allowOverride: allowOverride,
		logger:        logger,
	}
}

func (r *defaultDefinitionRegistry) RegisterBeanDefinition(name string, def *BeanDefinition) error {
	if def == nil {
		return fmt.Errorf("cannot register nil bean definition")
	}
	if name == "" {
		return fmt.Errorf("bean name cannot be empty")
	}
	if err := def.Validate(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[name]; exists {
		if !r.allowOverride {
			return DefinitionOverrideError(name)
		}
		r.logger.Info("Overriding bean definition", "bean", name, "source", def.Source)
	} else {
		if target, isAlias := r.aliases[name]; isAlias {
			r.logger.Debug("Bean definition replaces alias", "bean", name, "alias_of", target)
			delete(r.aliases, name)
		}
		r.names = append(r.names, name)
	}

	r.logger.Debug("Registering bean definition", "bean", name, "class", def.ClassName, "scope", string(def.Scope))
	r.definitions[name] = def
	return nil
}

func (r *defaultDefinitionRegistry) RemoveBeanDefinition(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[name]; !exists {
		return NoSuchBeanDefinitionError(name)
	}
	delete(r.definitions, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return nil
}

func (r *defaultDefinitionRegistry) GetBeanDefinition(name string) (*BeanDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.definitions[name]
	if !exists {
		return nil, NoSuchBeanDefinitionError(name)
	}
	return def, nil
}

func (r *defaultDefinitionRegistry) ContainsBeanDefinition(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.definitions[name]
	return exists
}

func (r *defaultDefinitionRegistry) BeanDefinitionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Return a copy to avoid concurrent access issues
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

func (r *defaultDefinitionRegistry) BeanDefinitionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.definitions)
}

func (r *defaultDefinitionRegistry) RegisterAlias(name, alias string) error {
	if name == "" || alias == "" {
		return fmt.Errorf("alias and bean name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if alias == name {
		return fmt.Errorf("alias '%s' must differ from the bean name", alias)
	}
	if existing, exists := r.aliases[alias]; exists {
		if existing == name {
			return nil
		}
		if !r.allowOverride {
			return fmt.Errorf("cannot define alias '%s' for name '%s': it is already registered for name '%s'", alias, name, existing)
		}
	}
	chain := r.aliasChainLocked(name)
	if i := slices.Index(chain, alias); i >= 0 {
		return CircularDependencyError(append([]string{alias}, chain[:i+1]...))
	}

	r.logger.Debug("Registering alias", "alias", alias, "bean", name)
	r.aliases[alias] = name
	return nil
}

func (r *defaultDefinitionRegistry) GetAliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical := r.resolveLocked(name)
	var result []string
	for alias := range r.aliases {
		if alias != name && r.resolveLocked(alias) == canonical {
			result = append(result, alias)
		}
	}
	sort.Strings(result)
	return result
}

// canonicalName follows aliases to the registered bean name
func (r *defaultDefinitionRegistry) canonicalName(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.resolveLocked(name)
}

func (r *defaultDefinitionRegistry) resolveLocked(name string) string {
	seen := map[string]bool{}
	for {
		target, ok := r.aliases[name]
		if !ok || seen[name] {
			return name
		}
		seen[name] = true
		name = target
	}
}

// aliasChainLocked follows aliases from name and returns every name on the
// way. The walk stops at a registered bean name or where the chain loops.
func (r *defaultDefinitionRegistry) aliasChainLocked(name string) []string {
	chain := []string{name}
	seen := map[string]bool{name: true}
	for {
		target, ok := r.aliases[name]
		if !ok || seen[target] {
			return chain
		}
		chain = append(chain, target)
		seen[target] = true
		name = target
	}
}

var _ DefinitionRegistry = (*defaultDefinitionRegistry)(nil)
