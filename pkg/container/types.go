package container

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// TypeRegistry maps class names used in bean definitions to Go types.
// Go cannot load a type by name at runtime, so every class a definition
// refers to has to be registered up front.
type TypeRegistry struct {
	mu           sync.RWMutex
	types        map[string]reflect.Type
	constructors map[string]reflect.Value
}

// Types is the process-wide registry used when a Config does not set one
var Types = NewTypeRegistry()

// NewTypeRegistry creates an empty registry
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:        make(map[string]reflect.Type),
		constructors: make(map[string]reflect.Value),
	}
}

// TypeName returns the qualified name a type is registered under, e.g.
// "github.com/acme/app/bean.Student"
func TypeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Register records the struct type of sample under its qualified Go name and
// any extra names. sample may be a struct value or a pointer to one.
func (r *TypeRegistry) Register(sample any, names ...string) error {
	if sample == nil {
		return fmt.Errorf("cannot register nil type")
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("type %v is not a struct", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range append([]string{TypeName(t)}, names...) {
		if existing, ok := r.types[name]; ok && existing != t {
			return fmt.Errorf("class name '%s' already registered for %v", name, existing)
		}
		r.types[name] = t
	}
	return nil
}

// RegisterConstructor records a constructor function for a class name. fn
// must return one value, or a value and an error. Constructor arguments of
// a definition are passed to fn by position.
func (r *TypeRegistry) RegisterConstructor(name string, fn any) error {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("constructor for '%s' is not a function", name)
	}
	ft := v.Type()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return fmt.Errorf("constructor for '%s' must return T or (T, error)", name)
	}
	if ft.IsVariadic() {
		return fmt.Errorf("constructor for '%s' must not be variadic", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.constructors[name] = v
	if _, ok := r.types[name]; !ok {
		r.types[name] = ft.Out(0)
	}
	return nil
}

// Lookup returns the type registered for a class name
func (r *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Constructor returns the constructor registered for a class name
func (r *TypeRegistry) Constructor(name string) (reflect.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.constructors[name]
	return fn, ok
}

// Names returns all registered class names, sorted
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterType registers sample on the default registry and panics on
// conflict. It is meant for package init functions.
func RegisterType(sample any, names ...string) {
	if err := Types.Register(sample, names...); err != nil {
		panic(err)
	}
}

// RegisterConstructor registers fn on the default registry and panics on error
func RegisterConstructor(name string, fn any) {
	if err := Types.RegisterConstructor(name, fn); err != nil {
		panic(err)
	}
}
