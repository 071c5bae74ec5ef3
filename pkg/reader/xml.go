package reader

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/01fortes/beanboot/pkg/container"
)

// parseXML reads a <beans> document
func parseXML(data []byte) (*document, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no <beans> element found")
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != "beans" {
				return nil, fmt.Errorf("root element must be <beans>, found <%s>", start.Name.Local)
			}
			return readBeans(d, start)
		}
	}
}

// xmlError prefixes err with the decoder position
func xmlError(d *xml.Decoder, format string, args ...any) error {
	line, _ := d.InputPos()
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

func attr(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func hasAttr(start xml.StartElement, name string) bool {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return true
		}
	}
	return false
}

// eachChild calls fn for every child element of the current element. fn
// must consume the whole child.
func eachChild(d *xml.Decoder, fn func(xml.StartElement) error) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func readBeans(d *xml.Decoder, start xml.StartElement) (*document, error) {
	doc := &document{
		profile: attr(start, "profile"),
		defaults: defaults{
			lazyInit:      attr(start, "default-lazy-init"),
			initMethod:    attr(start, "default-init-method"),
			destroyMethod: attr(start, "default-destroy-method"),
		},
	}

	err := eachChild(d, func(child xml.StartElement) error {
		switch child.Name.Local {
		case "description":
			return d.Skip()
		case "import":
			location := attr(child, "resource")
			if location == "" {
				return xmlError(d, "<import> needs a resource attribute")
			}
			doc.elements = append(doc.elements, element{imp: location})
			return d.Skip()
		case "alias":
			doc.elements = append(doc.elements, element{alias: &aliasDecl{
				name:  attr(child, "name"),
				alias: attr(child, "alias"),
			}})
			return d.Skip()
		case "bean":
			decl, err := readBean(d, child)
			if err != nil {
				return err
			}
			doc.elements = append(doc.elements, element{bean: decl})
			return nil
		case "beans":
			nested, err := readBeans(d, child)
			if err != nil {
				return err
			}
			doc.elements = append(doc.elements, element{nested: nested})
			return nil
		default:
			return xmlError(d, "unexpected element <%s> in <beans>", child.Name.Local)
		}
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func readBean(d *xml.Decoder, start xml.StartElement) (*beanDecl, error) {
	def := &container.BeanDefinition{
		ClassName:     attr(start, "class"),
		Parent:        attr(start, "parent"),
		Scope:         container.Scope(attr(start, "scope")),
		DependsOn:     splitNames(attr(start, "depends-on")),
		InitMethod:    attr(start, "init-method"),
		DestroyMethod: attr(start, "destroy-method"),
	}
	abstract, err := parseBool(attr(start, "abstract"))
	if err != nil {
		return nil, xmlError(d, "abstract: %v", err)
	}
	def.Abstract = abstract

	lazy := attr(start, "lazy-init")
	if _, err := parseBool(lazy); err != nil {
		return nil, xmlError(d, "lazy-init: %v", err)
	}
	decl := &beanDecl{
		id:       attr(start, "id"),
		name:     attr(start, "name"),
		lazyInit: strings.ToLower(lazy),
		def:      def,
	}

	err = eachChild(d, func(child xml.StartElement) error {
		switch child.Name.Local {
		case "description":
			var text string
			if err := d.DecodeElement(&text, &child); err != nil {
				return err
			}
			def.Description = strings.TrimSpace(text)
			return nil
		case "property":
			name := attr(child, "name")
			if name == "" {
				return xmlError(d, "<property> needs a name attribute")
			}
			v, err := readValueHolder(d, child)
			if err != nil {
				return fmt.Errorf("property '%s': %w", name, err)
			}
			def.Properties = append(def.Properties, container.PropertyValue{Name: name, Value: v})
			return nil
		case "constructor-arg":
			if hasAttr(child, "name") {
				return xmlError(d, "<constructor-arg> is matched by index only, the name attribute is not supported")
			}
			index := -1
			if s := attr(child, "index"); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n < 0 {
					return xmlError(d, "invalid constructor-arg index %q", s)
				}
				index = n
			}
			v, err := readValueHolder(d, child)
			if err != nil {
				return fmt.Errorf("constructor-arg: %w", err)
			}
			def.ConstructorArgs = append(def.ConstructorArgs, container.ConstructorArg{Index: index, Value: v})
			return nil
		default:
			return xmlError(d, "unexpected element <%s> in <bean>", child.Name.Local)
		}
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

// readValueHolder reads the value of a property, constructor-arg or map
// entry given by a value or ref attribute, or by exactly one child element
func readValueHolder(d *xml.Decoder, start xml.StartElement) (container.Value, error) {
	return readValueHolderAttrs(d, start, "value", "ref")
}

func readValueHolderAttrs(d *xml.Decoder, start xml.StartElement, valueAttr, refAttr string) (container.Value, error) {
	var values []container.Value
	if hasAttr(start, valueAttr) {
		values = append(values, container.LiteralValue(attr(start, valueAttr)))
	}
	if hasAttr(start, refAttr) {
		values = append(values, container.RefValue(attr(start, refAttr)))
	}

	err := eachChild(d, func(child xml.StartElement) error {
		switch child.Name.Local {
		case "description", "key":
			return d.Skip()
		}
		v, err := readValue(d, child)
		if err != nil {
			return err
		}
		values = append(values, v)
		return nil
	})
	if err != nil {
		return container.Value{}, err
	}

	switch len(values) {
	case 1:
		return values[0], nil
	case 0:
		return container.Value{}, xmlError(d, "<%s> needs a value", start.Name.Local)
	default:
		return container.Value{}, xmlError(d, "<%s> has more than one value", start.Name.Local)
	}
}

// readValue reads one value element such as <value>, <ref> or <list>
func readValue(d *xml.Decoder, start xml.StartElement) (container.Value, error) {
	switch start.Name.Local {
	case "value":
		var text string
		if err := d.DecodeElement(&text, &start); err != nil {
			return container.Value{}, err
		}
		return container.LiteralValue(text), nil

	case "null":
		return container.NullValue(), d.Skip()

	case "ref":
		name := attr(start, "bean")
		if name == "" {
			name = attr(start, "parent")
		}
		if name == "" {
			return container.Value{}, xmlError(d, "<ref> needs a bean attribute")
		}
		return container.RefValue(name), d.Skip()

	case "idref":
		name := attr(start, "bean")
		if name == "" {
			return container.Value{}, xmlError(d, "<idref> needs a bean attribute")
		}
		return container.LiteralValue(name), d.Skip()

	case "bean":
		decl, err := readBean(d, start)
		if err != nil {
			return container.Value{}, err
		}
		return container.BeanValue(decl.def), nil

	case "list", "array", "set":
		var items []container.Value
		err := eachChild(d, func(child xml.StartElement) error {
			v, err := readValue(d, child)
			if err != nil {
				return err
			}
			items = append(items, v)
			return nil
		})
		if err != nil {
			return container.Value{}, err
		}
		if start.Name.Local == "set" {
			items = dedupe(items)
		}
		return container.ListValue(items...), nil

	case "map":
		var entries []container.MapEntry
		err := eachChild(d, func(child xml.StartElement) error {
			if child.Name.Local != "entry" {
				return xmlError(d, "unexpected element <%s> in <map>", child.Name.Local)
			}
			if !hasAttr(child, "key") {
				return xmlError(d, "<entry> needs a key attribute")
			}
			key := attr(child, "key")
			v, err := readValueHolderAttrs(d, child, "value", "value-ref")
			if err != nil {
				return fmt.Errorf("entry %q: %w", key, err)
			}
			entries = append(entries, container.MapEntry{Key: key, Value: v})
			return nil
		})
		if err != nil {
			return container.Value{}, err
		}
		return container.MapValue(entries...), nil

	case "props":
		var entries []container.MapEntry
		err := eachChild(d, func(child xml.StartElement) error {
			if child.Name.Local != "prop" {
				return xmlError(d, "unexpected element <%s> in <props>", child.Name.Local)
			}
			var text string
			if err := d.DecodeElement(&text, &child); err != nil {
				return err
			}
			entries = append(entries, container.MapEntry{
				Key:   attr(child, "key"),
				Value: container.LiteralValue(strings.TrimSpace(text)),
			})
			return nil
		})
		if err != nil {
			return container.Value{}, err
		}
		return container.MapValue(entries...), nil
	}
	return container.Value{}, xmlError(d, "unexpected value element <%s>", start.Name.Local)
}

// dedupe drops repeated literal and ref values, keeping the first
func dedupe(items []container.Value) []container.Value {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		var key string
		switch item.Kind {
		case container.KindLiteral:
			key = "l:" + item.Literal
		case container.KindRef:
			key = "r:" + item.Ref
		default:
			out = append(out, item)
			continue
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, item)
		}
	}
	return out
}
