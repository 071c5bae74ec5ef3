package container

import (
	"reflect"
	"sync/atomic"
)

// creationContext tracks one creation graph: the chain of beans currently
// being created (for cycle detection) and which beans each of them looked up
// (for dependency bookkeeping and destroy ordering)
type creationContext struct {
	factory      *Factory
	path         []string
	inCreation   map[string]bool
	accessedDeps map[string]map[string]bool
	done         atomic.Bool

	// waiting is the singleton this graph waits on, guarded by Factory.mu
	waiting *pendingSingleton
}

func newCreationContext(f *Factory) *creationContext {
	return &creationContext{
		factory:      f,
		inCreation:   make(map[string]bool),
		accessedDeps: make(map[string]map[string]bool),
	}
}

// enter marks name as being created and fails if it already is
func (c *creationContext) enter(name string) error {
	if c.inCreation[name] {
		cycle := []string{name}
		for i := len(c.path) - 1; i >= 0; i-- {
			cycle = append([]string{c.path[i]}, cycle...)
			if c.path[i] == name {
				break
			}
		}
		return CircularDependencyError(cycle)
	}
	c.inCreation[name] = true
	c.path = append(c.path, name)
	return nil
}

func (c *creationContext) exit(name string) {
	delete(c.inCreation, name)
	if n := len(c.path); n > 0 && c.path[n-1] == name {
		c.path = c.path[:n-1]
	}
}

func (c *creationContext) current() string {
	if len(c.path) == 0 {
		return ""
	}
	return c.path[len(c.path)-1]
}

// track records that the bean being created looked up dep
func (c *creationContext) track(dep string) {
	current := c.current()
	if current == "" || current == dep {
		return
	}
	if c.accessedDeps[current] == nil {
		c.accessedDeps[current] = make(map[string]bool)
	}
	if !c.accessedDeps[current][dep] {
		c.accessedDeps[current][dep] = true
		c.factory.registerDependentBean(dep, current)
		c.factory.logger.Debug("Bean dependency detected", "bean", current, "depends_on", dep)
	}
}

func (c *creationContext) dependencyCount(name string) int {
	return len(c.accessedDeps[name])
}

func (c *creationContext) finish() {
	c.done.Store(true)
}

// pendingSingleton is a singleton some creation graph is building
type pendingSingleton struct {
	owner *creationContext
	done  chan struct{}
}

// claimSingleton makes cc the creator of the singleton name. When another
// graph is already creating it, claimSingleton waits for that graph and
// returns the cached result. A nil release means there is nothing to create.
func (f *Factory) claimSingleton(name string, cc *creationContext) (obj any, release func(), err error) {
	for {
		f.mu.Lock()
		if obj, ok := f.singletons[name]; ok {
			f.mu.Unlock()
			return obj, nil, nil
		}
		p, busy := f.creating[name]
		if !busy {
			p = &pendingSingleton{owner: cc, done: make(chan struct{})}
			f.creating[name] = p
			f.mu.Unlock()
			return nil, func() {
				f.mu.Lock()
				delete(f.creating, name)
				f.mu.Unlock()
				close(p.done)
			}, nil
		}
		if p.owner.waitsOnLocked(cc) {
			f.mu.Unlock()
			return nil, nil, CircularDependencyError(append([]string(nil), cc.path...))
		}
		cc.waiting = p
		f.mu.Unlock()

		f.logger.Debug("Waiting for bean created by another caller", "bean", name)
		<-p.done

		f.mu.Lock()
		cc.waiting = nil
		f.mu.Unlock()
	}
}

// waitsOnLocked reports whether c is blocked, directly or through other
// graphs, on a singleton owned by target
func (c *creationContext) waitsOnLocked(target *creationContext) bool {
	for g := c; g != nil; {
		if g == target {
			return true
		}
		if g.waiting == nil {
			return false
		}
		g = g.waiting.owner
	}
	return false
}

// scopedFactory is the BeanFactory handed to BeanFactoryAware beans. While
// the creation graph that produced the bean is still running, lookups join
// it; afterwards they go through the factory as usual.
type scopedFactory struct {
	factory *Factory
	cc      *creationContext
}

func (s *scopedFactory) GetBean(name string) (any, error) {
	if s.cc.done.Load() {
		return s.factory.GetBean(name)
	}
	return s.factory.getBean(name, s.cc)
}

func (s *scopedFactory) ContainsBean(name string) bool {
	return s.factory.ContainsBean(name)
}

func (s *scopedFactory) IsSingleton(name string) (bool, error) {
	return s.factory.IsSingleton(name)
}

func (s *scopedFactory) IsPrototype(name string) (bool, error) {
	return s.factory.IsPrototype(name)
}

func (s *scopedFactory) GetType(name string) (reflect.Type, error) {
	return s.factory.GetType(name)
}

func (s *scopedFactory) GetAliases(name string) []string {
	return s.factory.GetAliases(name)
}

var _ BeanFactory = (*scopedFactory)(nil)

// registerDependentBean records that dependent needs bean
func (f *Factory) registerDependentBean(bean, dependent string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dependents[bean] == nil {
		f.dependents[bean] = make(map[string]bool)
	}
	f.dependents[bean][dependent] = true
}

// GetDependentBeans returns the beans that depend on name
func (f *Factory) GetDependentBeans(name string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	deps := f.dependents[f.registry.canonicalName(name)]
	result := make([]string, 0, len(deps))
	for dep := range deps {
		result = append(result, dep)
	}
	return result
}

// dependsOnGraph collects the declared depends-on edges of every definition
func (f *Factory) dependsOnGraph() (map[string][]string, error) {
	graph := make(map[string][]string)
	for _, name := range f.registry.BeanDefinitionNames() {
		def, err := f.mergedDefinition(name)
		if err != nil {
			return nil, err
		}
		for _, dep := range def.DependsOn {
			graph[name] = append(graph[name], f.registry.canonicalName(dep))
		}
	}
	return graph, nil
}

func detectCycle(graph map[string][]string, source, target string, visited map[string]bool, path []string) (bool, []string) {
	if source == target {
		return true, append(path, target)
	}

	if visited[target] {
		return false, nil
	}

	visited[target] = true
	path = append(path, target)

	for _, dep := range graph[target] {
		if hasCycle, cyclePath := detectCycle(graph, source, dep, visited, path); hasCycle {
			return true, cyclePath
		}
	}

	return false, nil
}

// ValidateDependencies checks that every depends-on target exists and that
// depends-on declarations do not form a cycle
func (f *Factory) ValidateDependencies() error {
	graph, err := f.dependsOnGraph()
	if err != nil {
		return err
	}

	for _, name := range f.registry.BeanDefinitionNames() {
		for _, dep := range graph[name] {
			if !f.ContainsBean(dep) {
				return BeanCreationError(name, NoSuchBeanDefinitionError(dep))
			}
			if dep == name {
				return CircularDependencyError([]string{name, name})
			}
			if hasCycle, cycle := detectCycle(graph, name, dep, make(map[string]bool), []string{name}); hasCycle {
				return CircularDependencyError(cycle)
			}
		}
	}
	return nil
}
