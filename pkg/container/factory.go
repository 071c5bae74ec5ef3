package container

import (
	"errors"
	"fmt"
	"reflect"
)

// GetBean returns the bean registered under name or one of its aliases,
// creating it on first use
func (f *Factory) GetBean(name string) (any, error) {
	return f.getBean(name, nil)
}

func (f *Factory) getBean(name string, cc *creationContext) (any, error) {
	canonical := f.registry.canonicalName(name)

	if obj, ok := f.singleton(canonical); ok {
		if cc != nil {
			cc.track(canonical)
		}
		return obj, nil
	}

	if cc == nil {
		cc = newCreationContext(f)
		defer cc.finish()
	}

	cc.track(canonical)
	return f.doGetBean(canonical, cc)
}

// GetBeanAs returns the bean named name as a T. A bean stored as *S also
// satisfies T == S by copying the struct.
func GetBeanAs[T any](f BeanFactory, name string) (T, error) {
	var zero T

	obj, err := f.GetBean(name)
	if err != nil {
		return zero, err
	}
	if typed, ok := obj.(T); ok {
		return typed, nil
	}

	if v := reflect.ValueOf(obj); v.Kind() == reflect.Ptr && !v.IsNil() {
		if typed, ok := v.Elem().Interface().(T); ok {
			return typed, nil
		}
	}
	return zero, BeanNotOfRequiredTypeError(name, reflect.TypeOf((*T)(nil)).Elem().String(), fmt.Sprintf("%T", obj))
}

// MustGetBeanAs is like GetBeanAs but panics on error
func MustGetBeanAs[T any](f BeanFactory, name string) T {
	bean, err := GetBeanAs[T](f, name)
	if err != nil {
		panic(err)
	}
	return bean
}

// GetBeansOfType returns every non-abstract bean assignable to T, keyed by name
func GetBeansOfType[T any](f ListableBeanFactory) (map[string]T, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	result := make(map[string]T)
	for _, name := range f.GetBeanNamesForType(t) {
		bean, err := GetBeanAs[T](f, name)
		if err != nil {
			return nil, err
		}
		result[name] = bean
	}
	return result, nil
}

// ContainsBean checks if a definition or singleton exists for name
func (f *Factory) ContainsBean(name string) bool {
	canonical := f.registry.canonicalName(name)
	if _, ok := f.singleton(canonical); ok {
		return true
	}
	return f.registry.ContainsBeanDefinition(canonical)
}

// IsSingleton reports whether name resolves to a shared instance
func (f *Factory) IsSingleton(name string) (bool, error) {
	canonical := f.registry.canonicalName(name)
	def, err := f.mergedDefinition(canonical)
	if err != nil {
		if _, ok := f.singleton(canonical); ok {
			return true, nil
		}
		return false, err
	}
	return def.IsSingleton(), nil
}

// IsPrototype reports whether every lookup of name creates a new instance
func (f *Factory) IsPrototype(name string) (bool, error) {
	canonical := f.registry.canonicalName(name)
	def, err := f.mergedDefinition(canonical)
	if err != nil {
		if _, ok := f.singleton(canonical); ok {
			return false, nil
		}
		return false, err
	}
	return def.IsPrototype(), nil
}

// GetType returns the Go type produced for name. Singletons that already
// exist report their actual type; otherwise the type is derived from the
// definition without creating the bean.
func (f *Factory) GetType(name string) (reflect.Type, error) {
	canonical := f.registry.canonicalName(name)
	if obj, ok := f.singleton(canonical); ok {
		return reflect.TypeOf(obj), nil
	}

	def, err := f.mergedDefinition(canonical)
	if err != nil {
		return nil, err
	}
	if def.ClassName == "" {
		return nil, InvalidDefinitionError(canonical, "no class")
	}
	if ctor, ok := f.types.Constructor(def.ClassName); ok {
		return ctor.Type().Out(0), nil
	}
	t, ok := f.types.Lookup(def.ClassName)
	if !ok {
		return nil, UnknownClassError(canonical, def.ClassName)
	}
	return reflect.PointerTo(t), nil
}

// GetBeanNamesForType returns the names of non-abstract beans whose type is
// assignable to t, definitions first in registration order
func (f *Factory) GetBeanNamesForType(t reflect.Type) []string {
	var names []string
	seen := make(map[string]bool)

	for _, name := range f.registry.BeanDefinitionNames() {
		def, err := f.mergedDefinition(name)
		if err != nil || def.Abstract {
			continue
		}
		bt, err := f.GetType(name)
		if err != nil {
			f.logger.Debug("Skipping bean with unresolvable type", "bean", name, "error", err)
			continue
		}
		if bt.AssignableTo(t) {
			names = append(names, name)
			seen[name] = true
		}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, name := range f.singletonOrder {
		if seen[name] {
			continue
		}
		if reflect.TypeOf(f.singletons[name]).AssignableTo(t) {
			names = append(names, name)
		}
	}
	return names
}

// mergedDefinition resolves the parent chain of name into one definition
func (f *Factory) mergedDefinition(name string) (*BeanDefinition, error) {
	def, err := f.registry.GetBeanDefinition(name)
	if err != nil {
		return nil, err
	}
	return f.mergeParents(name, def, map[string]bool{name: true})
}

func (f *Factory) mergeParents(name string, def *BeanDefinition, visited map[string]bool) (*BeanDefinition, error) {
	if def.Parent == "" {
		return def.Copy(), nil
	}

	parentName := f.registry.canonicalName(def.Parent)
	if visited[parentName] {
		return nil, InvalidDefinitionError(name, fmt.Sprintf("parent chain loops back to '%s'", parentName))
	}
	visited[parentName] = true

	parentDef, err := f.registry.GetBeanDefinition(parentName)
	if err != nil {
		var be *BeanError
		if errors.As(err, &be) && be.Code == CodeNoSuchBean {
			return nil, InvalidDefinitionError(name, fmt.Sprintf("parent '%s' not found", def.Parent))
		}
		return nil, err
	}
	mergedParent, err := f.mergeParents(parentName, parentDef, visited)
	if err != nil {
		return nil, err
	}
	return mergeWith(mergedParent, def), nil
}
