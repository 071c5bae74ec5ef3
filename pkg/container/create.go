package container

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// doGetBean returns the bean for a canonical name that is not cached yet
func (f *Factory) doGetBean(name string, cc *creationContext) (any, error) {
	def, err := f.mergedDefinition(name)
	if err != nil {
		return nil, err
	}
	if def.Abstract {
		return nil, BeanIsAbstractError(name)
	}

	if err := cc.enter(name); err != nil {
		return nil, err
	}
	defer cc.exit(name)

	if def.IsSingleton() {
		obj, release, err := f.claimSingleton(name, cc)
		if release == nil {
			return obj, err
		}
		defer release()
	}

	for _, dep := range def.DependsOn {
		if _, err := f.getBean(dep, cc); err != nil {
			return nil, wrapCreation(name, fmt.Errorf("depends-on '%s': %w", dep, err))
		}
	}

	start := time.Now()
	obj, err := f.createBean(name, def, cc)
	if err != nil {
		f.metrics.RecordCreationFailure(name)
		f.logger.Debug("Bean creation failed", "bean", name, "error", err)
		return nil, err
	}
	duration := time.Since(start)

	f.metrics.RecordCreation(name, def.Scope, duration)
	f.metrics.RecordDependencyCount(name, cc.dependencyCount(name))

	if def.IsSingleton() {
		f.addSingleton(name, obj, def.DestroyMethod)
	}
	f.logger.Debug("Bean created",
		"bean", name,
		"scope", scopeName(def),
		"time_ms", duration.Milliseconds())
	return obj, nil
}

func scopeName(def *BeanDefinition) Scope {
	if def.Scope == "" {
		return ScopeSingleton
	}
	return def.Scope
}

// wrapCreation reports err as a creation failure of name. Cycle errors are
// passed through so the path stays readable.
func wrapCreation(name string, err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if be, ok := e.(*BeanError); ok && be.Code == CodeCircularDependency {
			return be
		}
	}
	return BeanCreationError(name, err)
}

// createBean instantiates, populates and initializes one bean
func (f *Factory) createBean(name string, def *BeanDefinition, cc *creationContext) (any, error) {
	obj, err := f.instantiate(name, def, cc)
	if err != nil {
		return nil, wrapCreation(name, err)
	}

	for _, p := range def.Properties {
		if err := f.applyProperty(name, obj, p, cc); err != nil {
			return nil, wrapCreation(name, err)
		}
	}

	obj, err = f.initializeBean(name, obj, def, cc)
	if err != nil {
		return nil, wrapCreation(name, err)
	}
	return obj, nil
}

// createInnerBean creates a bean that only exists as the value of a
// property or constructor argument. It is never cached.
func (f *Factory) createInnerBean(outer string, def *BeanDefinition, cc *creationContext) (any, error) {
	merged, err := f.mergeParents(outer, def, map[string]bool{})
	if err != nil {
		return nil, err
	}
	if merged.Abstract {
		return nil, InvalidDefinitionError(outer, "inner bean cannot be abstract")
	}
	return f.createBean(outer+"#inner", merged, cc)
}

func (f *Factory) instantiate(name string, def *BeanDefinition, cc *creationContext) (any, error) {
	if def.ClassName == "" {
		return nil, InvalidDefinitionError(name, "no class")
	}

	if ctor, ok := f.types.Constructor(def.ClassName); ok {
		return f.callConstructor(name, def, ctor, cc)
	}

	t, ok := f.types.Lookup(def.ClassName)
	if !ok {
		return nil, UnknownClassError(name, def.ClassName)
	}
	if len(def.ConstructorArgs) > 0 {
		return nil, fmt.Errorf("class [%s] has constructor arguments but no registered constructor", def.ClassName)
	}
	return reflect.New(t).Interface(), nil
}

func (f *Factory) callConstructor(name string, def *BeanDefinition, ctor reflect.Value, cc *creationContext) (any, error) {
	ft := ctor.Type()
	values, err := orderArgs(def.ConstructorArgs, ft.NumIn())
	if err != nil {
		return nil, err
	}

	args := make([]reflect.Value, ft.NumIn())
	for i, v := range values {
		arg, err := f.resolveValue(name, v, ft.In(i), cc)
		if err != nil {
			return nil, fmt.Errorf("constructor argument %d: %w", i, err)
		}
		args[i] = arg
	}

	out := ctor.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("constructor of [%s] failed: %w", def.ClassName, out[1].Interface().(error))
	}
	result := out[0]
	switch result.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if result.IsNil() {
			return nil, fmt.Errorf("constructor of [%s] returned nil", def.ClassName)
		}
	}
	return result.Interface(), nil
}

// orderArgs places indexed arguments at their index and the rest at the
// next free position, and checks the count against the constructor
func orderArgs(args []ConstructorArg, n int) ([]Value, error) {
	if len(args) != n {
		return nil, fmt.Errorf("constructor takes %d arguments, %d given", n, len(args))
	}

	values := make([]Value, n)
	filled := make([]bool, n)
	for _, arg := range args {
		if arg.Index < 0 {
			continue
		}
		if arg.Index >= n {
			return nil, fmt.Errorf("constructor argument index %d out of range, constructor takes %d", arg.Index, n)
		}
		values[arg.Index] = arg.Value
		filled[arg.Index] = true
	}

	next := 0
	for _, arg := range args {
		if arg.Index >= 0 {
			continue
		}
		for filled[next] {
			next++
		}
		values[next] = arg.Value
		filled[next] = true
	}
	return values, nil
}

// applyProperty sets one property through a setter, a tagged field or a
// field with a matching name, in that order
func (f *Factory) applyProperty(name string, obj any, p PropertyValue, cc *creationContext) error {
	v := reflect.ValueOf(obj)

	if m := v.MethodByName("Set" + upperFirst(p.Name)); m.IsValid() && isSetter(m.Type()) {
		arg, err := f.resolveValue(name, p.Value, m.Type().In(0), cc)
		if err != nil {
			return InvalidPropertyError(name, p.Name, "cannot convert value", err)
		}
		out := m.Call([]reflect.Value{arg})
		if len(out) == 1 && !out[0].IsNil() {
			return InvalidPropertyError(name, p.Name, "setter failed", out[0].Interface().(error))
		}
		return nil
	}

	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return InvalidPropertyError(name, p.Name, "bean is nil", nil)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return InvalidPropertyError(name, p.Name, fmt.Sprintf("bean of type %T has no properties", obj), nil)
	}

	field, ok := findField(v.Type(), p.Name)
	if !ok {
		return InvalidPropertyError(name, p.Name, fmt.Sprintf("no writable property on %T", obj), nil)
	}
	fv, err := v.FieldByIndexErr(field.Index)
	if err != nil {
		return InvalidPropertyError(name, p.Name, "field is not reachable", err)
	}
	if !fv.CanSet() {
		return InvalidPropertyError(name, p.Name, fmt.Sprintf("field %s is not settable", field.Name), nil)
	}

	val, err := f.resolveValue(name, p.Value, fv.Type(), cc)
	if err != nil {
		return InvalidPropertyError(name, p.Name, "cannot convert value", err)
	}
	fv.Set(val)
	return nil
}

func isSetter(mt reflect.Type) bool {
	if mt.NumIn() != 1 || mt.IsVariadic() {
		return false
	}
	return mt.NumOut() == 0 || (mt.NumOut() == 1 && mt.Out(0) == errorType)
}

// findField looks up an exported field by `bean:"name"` tag, then by
// case-insensitive name
func findField(t reflect.Type, name string) (reflect.StructField, bool) {
	fields := reflect.VisibleFields(t)
	for _, field := range fields {
		if !field.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(field.Tag.Get("bean"), ","); tag == name {
			return field, true
		}
	}
	for _, field := range fields {
		if field.IsExported() && !field.Anonymous && strings.EqualFold(field.Name, name) {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// initializeBean runs the aware callbacks, post-processors and init methods
func (f *Factory) initializeBean(name string, obj any, def *BeanDefinition, cc *creationContext) (any, error) {
	if aware, ok := obj.(BeanNameAware); ok {
		aware.SetBeanName(name)
	}
	if aware, ok := obj.(BeanFactoryAware); ok {
		aware.SetBeanFactory(&scopedFactory{factory: f, cc: cc})
	}

	processors := f.beanPostProcessors()
	var err error
	for _, p := range processors {
		if obj, err = p.PostProcessBeforeInitialization(obj, name); err != nil {
			return nil, fmt.Errorf("post-processor before initialization: %w", err)
		}
		if obj == nil {
			return nil, fmt.Errorf("post-processor %T returned nil before initialization", p)
		}
	}

	initializing, isInitializing := obj.(InitializingBean)
	if isInitializing {
		if err := initializing.AfterPropertiesSet(); err != nil {
			return nil, fmt.Errorf("AfterPropertiesSet: %w", err)
		}
	}
	if def.InitMethod != "" && !(isInitializing && def.InitMethod == "AfterPropertiesSet") {
		f.logger.Debug("Invoking init method", "bean", name, "method", def.InitMethod)
		if err := invokeMethod(obj, def.InitMethod); err != nil {
			return nil, fmt.Errorf("init method '%s': %w", def.InitMethod, err)
		}
	}

	for _, p := range processors {
		if obj, err = p.PostProcessAfterInitialization(obj, name); err != nil {
			return nil, fmt.Errorf("post-processor after initialization: %w", err)
		}
		if obj == nil {
			return nil, fmt.Errorf("post-processor %T returned nil after initialization", p)
		}
	}
	return obj, nil
}

// invokeMethod calls a no-argument method returning nothing or an error
func invokeMethod(obj any, method string) error {
	m := reflect.ValueOf(obj).MethodByName(method)
	if !m.IsValid() {
		return fmt.Errorf("method not found on %T", obj)
	}
	mt := m.Type()
	if mt.NumIn() != 0 {
		return fmt.Errorf("method on %T must not take arguments", obj)
	}
	if mt.NumOut() > 1 || (mt.NumOut() == 1 && mt.Out(0) != errorType) {
		return fmt.Errorf("method on %T must return nothing or an error", obj)
	}

	out := m.Call(nil)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
