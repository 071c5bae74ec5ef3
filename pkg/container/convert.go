package container

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	stringType          = reflect.TypeOf("")
	anySliceType        = reflect.TypeOf([]any(nil))
	anyMapType          = reflect.TypeOf(map[string]any(nil))
)

// resolveValue turns a declarative value into a reflect.Value assignable to target
func (f *Factory) resolveValue(beanName string, v Value, target reflect.Type, cc *creationContext) (reflect.Value, error) {
	switch v.Kind {
	case KindNull:
		return reflect.Zero(target), nil

	case KindLiteral:
		text := v.Literal
		if f.env != nil {
			resolved, err := f.env.Resolve(text)
			if err != nil {
				return reflect.Value{}, err
			}
			text = resolved
		}
		return convertString(text, target)

	case KindRef:
		obj, err := f.getBean(v.Ref, cc)
		if err != nil {
			return reflect.Value{}, err
		}
		return assignBean(obj, target)

	case KindBean:
		obj, err := f.createInnerBean(beanName, v.Bean, cc)
		if err != nil {
			return reflect.Value{}, err
		}
		return assignBean(obj, target)

	case KindList:
		return f.resolveList(beanName, v.Items, target, cc)

	case KindMap:
		return f.resolveMap(beanName, v.Entries, target, cc)
	}
	return reflect.Value{}, fmt.Errorf("unknown value kind %v", v.Kind)
}

func (f *Factory) resolveList(beanName string, items []Value, target reflect.Type, cc *creationContext) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(target, 0, len(items))
		for i, item := range items {
			ev, err := f.resolveValue(beanName, item, target.Elem(), cc)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out = reflect.Append(out, ev)
		}
		return out, nil

	case reflect.Array:
		if len(items) > target.Len() {
			return reflect.Value{}, fmt.Errorf("%d elements do not fit into %v", len(items), target)
		}
		out := reflect.New(target).Elem()
		for i, item := range items {
			ev, err := f.resolveValue(beanName, item, target.Elem(), cc)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case reflect.Ptr:
		elem, err := f.resolveList(beanName, items, target.Elem(), cc)
		if err != nil {
			return reflect.Value{}, err
		}
		return pointerTo(elem), nil

	case reflect.Interface:
		if anySliceType.Implements(target) {
			list, err := f.resolveList(beanName, items, anySliceType, cc)
			if err != nil {
				return reflect.Value{}, err
			}
			return list, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot inject a list into %v", target)
}

func (f *Factory) resolveMap(beanName string, entries []MapEntry, target reflect.Type, cc *creationContext) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.Map:
		out := reflect.MakeMapWithSize(target, len(entries))
		for _, entry := range entries {
			key, err := convertString(entry.Key, target.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", entry.Key, err)
			}
			ev, err := f.resolveValue(beanName, entry.Value, target.Elem(), cc)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("entry %q: %w", entry.Key, err)
			}
			out.SetMapIndex(key, ev)
		}
		return out, nil

	case reflect.Struct:
		out := reflect.New(target).Elem()
		for _, entry := range entries {
			field, ok := findField(target, entry.Key)
			if !ok {
				return reflect.Value{}, fmt.Errorf("%v has no field %q", target, entry.Key)
			}
			fv, err := out.FieldByIndexErr(field.Index)
			if err != nil || !fv.CanSet() {
				return reflect.Value{}, fmt.Errorf("field %q of %v is not settable", entry.Key, target)
			}
			ev, err := f.resolveValue(beanName, entry.Value, fv.Type(), cc)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %q: %w", entry.Key, err)
			}
			fv.Set(ev)
		}
		return out, nil

	case reflect.Ptr:
		elem, err := f.resolveMap(beanName, entries, target.Elem(), cc)
		if err != nil {
			return reflect.Value{}, err
		}
		return pointerTo(elem), nil

	case reflect.Interface:
		if anyMapType.Implements(target) {
			return f.resolveMap(beanName, entries, anyMapType, cc)
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot inject a map into %v", target)
}

func pointerTo(v reflect.Value) reflect.Value {
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

// assignBean adapts a bean instance to target. A *S bean can fill an S
// target and an S bean a *S target; both copy the struct.
func assignBean(obj any, target reflect.Type) (reflect.Value, error) {
	if obj == nil {
		return reflect.Zero(target), nil
	}
	v := reflect.ValueOf(obj)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Type().AssignableTo(target) {
		return v.Elem(), nil
	}
	if target.Kind() == reflect.Ptr && v.Type().AssignableTo(target.Elem()) {
		return pointerTo(v), nil
	}
	return reflect.Value{}, fmt.Errorf("bean of type %v is not assignable to %v", v.Type(), target)
}

// convertString converts a literal to target
func convertString(s string, target reflect.Type) (reflect.Value, error) {
	if target == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(d), nil
	}

	if reflect.PointerTo(target).Implements(textUnmarshalerType) {
		p := reflect.New(target)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}

	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.String:
		out.SetString(s)
		return out, nil

	case reflect.Bool:
		b, err := parseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
		return out, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 0, target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(n)
		return out, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(strings.TrimSpace(s), 0, target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(n)
		return out, nil

	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(strings.TrimSpace(s), target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(n)
		return out, nil

	case reflect.Ptr:
		elem, err := convertString(s, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		return pointerTo(elem), nil

	case reflect.Interface:
		if stringType.Implements(target) {
			out.Set(reflect.ValueOf(s))
			return out, nil
		}

	case reflect.Slice:
		if target.Elem().Kind() == reflect.Uint8 {
			return reflect.ValueOf([]byte(s)).Convert(target), nil
		}
		slice := reflect.MakeSlice(target, 0, 4)
		if strings.TrimSpace(s) == "" {
			return slice, nil
		}
		for _, part := range strings.Split(s, ",") {
			ev, err := convertString(strings.TrimSpace(part), target.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			slice = reflect.Append(slice, ev)
		}
		return slice, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %q to %v", s, target)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
