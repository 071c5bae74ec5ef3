package container

import "fmt"

// Scope controls how many instances a definition produces
type Scope string

const (
	// ScopeSingleton shares one instance per factory; this is the default
	ScopeSingleton Scope = "singleton"
	// ScopePrototype creates a new instance on every lookup
	ScopePrototype Scope = "prototype"
)

// ValueKind identifies the shape of a Value
type ValueKind int

const (
	KindLiteral ValueKind = iota
	KindRef
	KindBean
	KindList
	KindMap
	KindNull
)

func (k ValueKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindRef:
		return "ref"
	case KindBean:
		return "bean"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNull:
		return "null"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is a declarative property or constructor argument value
type Value struct {
	Kind    ValueKind
	Literal string
	Ref     string
	Bean    *BeanDefinition
	Items   []Value
	Entries []MapEntry
}

// MapEntry is one key/value pair of a map Value
type MapEntry struct {
	Key   string
	Value Value
}

// LiteralValue returns a string literal, converted to the target type on injection
func LiteralValue(s string) Value {
	return Value{Kind: KindLiteral, Literal: s}
}

// RefValue returns a reference to another bean by name
func RefValue(name string) Value {
	return Value{Kind: KindRef, Ref: name}
}

// BeanValue returns an inner bean that is created for the injection only
func BeanValue(def *BeanDefinition) Value {
	return Value{Kind: KindBean, Bean: def}
}

// ListValue returns an ordered collection
func ListValue(items ...Value) Value {
	return Value{Kind: KindList, Items: items}
}

// MapValue returns a keyed collection
func MapValue(entries ...MapEntry) Value {
	return Value{Kind: KindMap, Entries: entries}
}

// NullValue injects the zero value of the target
func NullValue() Value {
	return Value{Kind: KindNull}
}

func (v Value) validate() error {
	switch v.Kind {
	case KindLiteral, KindNull:
		return nil
	case KindRef:
		if v.Ref == "" {
			return fmt.Errorf("reference has an empty bean name")
		}
	case KindBean:
		if v.Bean == nil {
			return fmt.Errorf("inner bean has no definition")
		}
		if v.Bean.ClassName == "" && v.Bean.Parent == "" {
			return fmt.Errorf("inner bean has no class")
		}
		return v.Bean.Validate("(inner bean)")
	case KindList:
		for i, item := range v.Items {
			if err := item.validate(); err != nil {
				return fmt.Errorf("list item %d: %w", i, err)
			}
		}
	case KindMap:
		for _, entry := range v.Entries {
			if err := entry.Value.validate(); err != nil {
				return fmt.Errorf("map entry %q: %w", entry.Key, err)
			}
		}
	default:
		return fmt.Errorf("unknown value kind %v", v.Kind)
	}
	return nil
}

// PropertyValue binds a value to a named property
type PropertyValue struct {
	Name  string
	Value Value
}

// ConstructorArg binds a value to a constructor parameter. Index -1 means
// the next free position in declaration order.
type ConstructorArg struct {
	Index int
	Value Value
}

// BeanDefinition describes how the factory creates one bean
type BeanDefinition struct {
	ClassName       string
	Parent          string
	Scope           Scope
	Abstract        bool
	LazyInit        bool
	DependsOn       []string
	InitMethod      string
	DestroyMethod   string
	Properties      []PropertyValue
	ConstructorArgs []ConstructorArg
	Description     string
	// Source describes the resource the definition was read from
	Source string
}

// IsSingleton reports whether the definition uses the singleton scope
func (d *BeanDefinition) IsSingleton() bool {
	return d.Scope == "" || d.Scope == ScopeSingleton
}

// IsPrototype reports whether the definition uses the prototype scope
func (d *BeanDefinition) IsPrototype() bool {
	return d.Scope == ScopePrototype
}

// Property returns the property with the given name
func (d *BeanDefinition) Property(name string) (PropertyValue, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyValue{}, false
}

// SetProperty adds a property or replaces the one with the same name
func (d *BeanDefinition) SetProperty(name string, v Value) {
	for i, p := range d.Properties {
		if p.Name == name {
			d.Properties[i].Value = v
			return
		}
	}
	d.Properties = append(d.Properties, PropertyValue{Name: name, Value: v})
}

// Validate checks the definition for structural errors
func (d *BeanDefinition) Validate(name string) error {
	switch d.Scope {
	case "", ScopeSingleton, ScopePrototype:
	default:
		return InvalidDefinitionError(name, fmt.Sprintf("unknown scope '%s'", d.Scope))
	}
	if !d.Abstract && d.ClassName == "" && d.Parent == "" {
		return InvalidDefinitionError(name, "no class and no parent")
	}
	if d.Parent == name && name != "" {
		return InvalidDefinitionError(name, "definition cannot be its own parent")
	}

	seen := make(map[string]bool, len(d.Properties))
	for _, p := range d.Properties {
		if p.Name == "" {
			return InvalidDefinitionError(name, "property with empty name")
		}
		if seen[p.Name] {
			return InvalidDefinitionError(name, fmt.Sprintf("property '%s' defined more than once", p.Name))
		}
		seen[p.Name] = true
		if err := p.Value.validate(); err != nil {
			return InvalidDefinitionError(name, fmt.Sprintf("property '%s': %v", p.Name, err))
		}
	}

	indexes := make(map[int]bool, len(d.ConstructorArgs))
	for i, arg := range d.ConstructorArgs {
		if arg.Index < -1 {
			return InvalidDefinitionError(name, fmt.Sprintf("constructor argument %d has negative index", i))
		}
		if arg.Index >= 0 {
			if indexes[arg.Index] {
				return InvalidDefinitionError(name, fmt.Sprintf("constructor argument index %d defined more than once", arg.Index))
			}
			indexes[arg.Index] = true
		}
		if err := arg.Value.validate(); err != nil {
			return InvalidDefinitionError(name, fmt.Sprintf("constructor argument %d: %v", i, err))
		}
	}

	for _, dep := range d.DependsOn {
		if dep == "" {
			return InvalidDefinitionError(name, "empty depends-on entry")
		}
	}
	return nil
}

// Copy returns a copy whose slices can be modified independently
func (d *BeanDefinition) Copy() *BeanDefinition {
	if d == nil {
		return nil
	}
	cp := *d
	cp.DependsOn = append([]string(nil), d.DependsOn...)
	cp.Properties = append([]PropertyValue(nil), d.Properties...)
	cp.ConstructorArgs = append([]ConstructorArg(nil), d.ConstructorArgs...)
	return &cp
}

// mergeWith overlays child on top of a merged parent definition
func mergeWith(parent, child *BeanDefinition) *BeanDefinition {
	merged := parent.Copy()
	merged.Abstract = child.Abstract
	merged.Parent = child.Parent
	merged.Source = child.Source
	merged.Description = child.Description

	if child.ClassName != "" {
		merged.ClassName = child.ClassName
	}
	if child.Scope != "" {
		merged.Scope = child.Scope
	}
	merged.LazyInit = child.LazyInit
	if child.InitMethod != "" {
		merged.InitMethod = child.InitMethod
	}
	if child.DestroyMethod != "" {
		merged.DestroyMethod = child.DestroyMethod
	}
	if len(child.DependsOn) > 0 {
		merged.DependsOn = append([]string(nil), child.DependsOn...)
	}
	for _, p := range child.Properties {
		merged.SetProperty(p.Name, p.Value)
	}
	merged.ConstructorArgs = mergeConstructorArgs(merged.ConstructorArgs, child.ConstructorArgs)
	return merged
}

// mergeConstructorArgs replaces parent arguments that share an index with a
// child argument and appends the remaining child arguments
func mergeConstructorArgs(parent, child []ConstructorArg) []ConstructorArg {
	merged := append([]ConstructorArg(nil), parent...)
	for _, arg := range child {
		replaced := false
		if arg.Index >= 0 {
			for i := range merged {
				if merged[i].Index == arg.Index {
					merged[i] = arg
					replaced = true
					break
				}
			}
		}
		if !replaced {
			merged = append(merged, arg)
		}
	}
	return merged
}
