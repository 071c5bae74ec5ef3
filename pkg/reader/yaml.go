package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/01fortes/beanboot/pkg/container"
)

// Keys of a single-key mapping that mark a typed value instead of a map
const (
	keyRef   = "ref"
	keyBean  = "bean"
	keyValue = "value"
	keyNull  = "null"
	keyMap   = "map"
)

var reservedValueKeys = map[string]bool{
	keyRef:   true,
	keyBean:  true,
	keyValue: true,
	keyNull:  true,
	keyMap:   true,
}

// parseYAML reads every document of a YAML stream
func parseYAML(data []byte) ([]*document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var docs []*document
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		if len(node.Content) == 0 {
			continue
		}
		root := node.Content[0]
		if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
			continue
		}
		doc, err := readYAMLDocument(root)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

func yamlError(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// eachPair calls fn for every key/value pair of a mapping node in order
func eachPair(n *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	n = resolveAlias(n)
	if n.Kind != yaml.MappingNode {
		return yamlError(n, "expected a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, resolveAlias(n.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

func scalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", yamlError(n, "expected a scalar")
	}
	if n.Tag == "!!null" {
		return "", nil
	}
	return n.Value, nil
}

// stringList accepts a scalar with separators or a sequence of scalars
func stringList(n *yaml.Node) ([]string, error) {
	if n.Kind == yaml.SequenceNode {
		var out []string
		for _, item := range n.Content {
			s, err := scalar(resolveAlias(item))
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	s, err := scalar(n)
	if err != nil {
		return nil, err
	}
	return splitNames(s), nil
}

func readYAMLDocument(n *yaml.Node) (*document, error) {
	doc := &document{}
	err := eachPair(n, func(key string, value *yaml.Node) error {
		switch key {
		case "profile":
			profiles, err := stringList(value)
			if err != nil {
				return err
			}
			doc.profile = strings.Join(profiles, ",")
		case "defaults":
			return eachPair(value, func(k string, v *yaml.Node) error {
				s, err := scalar(v)
				if err != nil {
					return err
				}
				switch k {
				case "lazy-init":
					doc.defaults.lazyInit = strings.ToLower(s)
				case "init-method":
					doc.defaults.initMethod = s
				case "destroy-method":
					doc.defaults.destroyMethod = s
				default:
					return yamlError(v, "unknown default %q", k)
				}
				return nil
			})
		case "imports":
			if value.Kind != yaml.SequenceNode {
				return yamlError(value, "imports must be a list")
			}
			for _, item := range value.Content {
				item = resolveAlias(item)
				location, err := importLocation(item)
				if err != nil {
					return err
				}
				doc.elements = append(doc.elements, element{imp: location})
			}
		case "aliases":
			return readYAMLAliases(doc, value)
		case "beans":
			return readYAMLBeans(doc, value)
		case "nested":
			if value.Kind != yaml.SequenceNode {
				return yamlError(value, "nested must be a list of documents")
			}
			for _, item := range value.Content {
				nested, err := readYAMLDocument(resolveAlias(item))
				if err != nil {
					return err
				}
				doc.elements = append(doc.elements, element{nested: nested})
			}
		default:
			return yamlError(value, "unknown key %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func importLocation(n *yaml.Node) (string, error) {
	if n.Kind == yaml.MappingNode {
		var location string
		err := eachPair(n, func(k string, v *yaml.Node) error {
			if k != "resource" {
				return yamlError(v, "unknown import key %q", k)
			}
			s, err := scalar(v)
			location = s
			return err
		})
		if err != nil {
			return "", err
		}
		if location == "" {
			return "", yamlError(n, "import needs a resource")
		}
		return location, nil
	}
	location, err := scalar(n)
	if err == nil && location == "" {
		err = yamlError(n, "import needs a resource")
	}
	return location, err
}

func readYAMLAliases(doc *document, n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		for _, item := range n.Content {
			decl := &aliasDecl{}
			err := eachPair(item, func(k string, v *yaml.Node) error {
				s, err := scalar(v)
				if err != nil {
					return err
				}
				switch k {
				case "name":
					decl.name = s
				case "alias":
					decl.alias = s
				default:
					return yamlError(v, "unknown alias key %q", k)
				}
				return nil
			})
			if err != nil {
				return err
			}
			doc.elements = append(doc.elements, element{alias: decl})
		}
		return nil
	case yaml.MappingNode:
		// name: alias or name: [alias, ...]
		return eachPair(n, func(name string, v *yaml.Node) error {
			aliases, err := stringList(v)
			if err != nil {
				return err
			}
			for _, alias := range aliases {
				doc.elements = append(doc.elements, element{alias: &aliasDecl{name: name, alias: alias}})
			}
			return nil
		})
	}
	return yamlError(n, "aliases must be a list or a mapping")
}

func readYAMLBeans(doc *document, n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		return eachPair(n, func(id string, v *yaml.Node) error {
			decl, err := readYAMLBean(v)
			if err != nil {
				return fmt.Errorf("bean '%s': %w", id, err)
			}
			if decl.id != "" && decl.id != id {
				return yamlError(v, "bean '%s' declares a different id '%s'", id, decl.id)
			}
			decl.id = id
			doc.elements = append(doc.elements, element{bean: decl})
			return nil
		})
	case yaml.SequenceNode:
		for _, item := range n.Content {
			decl, err := readYAMLBean(resolveAlias(item))
			if err != nil {
				return err
			}
			doc.elements = append(doc.elements, element{bean: decl})
		}
		return nil
	}
	return yamlError(n, "beans must be a mapping or a list")
}

func readYAMLBean(n *yaml.Node) (*beanDecl, error) {
	def := &container.BeanDefinition{}
	decl := &beanDecl{def: def}

	err := eachPair(n, func(key string, v *yaml.Node) error {
		switch key {
		case "properties":
			return eachPair(v, func(name string, pv *yaml.Node) error {
				value, err := readYAMLValue(pv)
				if err != nil {
					return fmt.Errorf("property '%s': %w", name, err)
				}
				def.Properties = append(def.Properties, container.PropertyValue{Name: name, Value: value})
				return nil
			})
		case "constructor-args":
			if v.Kind != yaml.SequenceNode {
				return yamlError(v, "constructor-args must be a list")
			}
			for i, item := range v.Content {
				arg, err := readYAMLConstructorArg(resolveAlias(item))
				if err != nil {
					return fmt.Errorf("constructor-arg %d: %w", i, err)
				}
				def.ConstructorArgs = append(def.ConstructorArgs, arg)
			}
			return nil
		case "depends-on":
			deps, err := stringList(v)
			def.DependsOn = deps
			return err
		case "name", "names":
			names, err := stringList(v)
			decl.name = strings.Join(names, ",")
			return err
		}

		s, err := scalar(v)
		if err != nil {
			return err
		}
		switch key {
		case "id":
			decl.id = s
		case "class":
			def.ClassName = s
		case "parent":
			def.Parent = s
		case "scope":
			def.Scope = container.Scope(s)
		case "abstract":
			def.Abstract, err = parseBool(s)
		case "lazy-init":
			_, err = parseBool(s)
			decl.lazyInit = strings.ToLower(s)
		case "init-method":
			def.InitMethod = s
		case "destroy-method":
			def.DestroyMethod = s
		case "description":
			def.Description = s
		default:
			return yamlError(v, "unknown bean key %q", key)
		}
		if err != nil {
			return yamlError(v, "%s: %v", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

// readYAMLConstructorArg reads a plain value, or a mapping with an index
// key next to the value keys
func readYAMLConstructorArg(n *yaml.Node) (container.ConstructorArg, error) {
	arg := container.ConstructorArg{Index: -1}
	if n.Kind != yaml.MappingNode {
		v, err := readYAMLValue(n)
		arg.Value = v
		return arg, err
	}

	rest := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: n.Line, Column: n.Column}
	hasIndex := false
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "index" {
			idx, err := strconv.Atoi(n.Content[i+1].Value)
			if err != nil || idx < 0 {
				return arg, yamlError(n.Content[i+1], "invalid index %q", n.Content[i+1].Value)
			}
			arg.Index = idx
			hasIndex = true
			continue
		}
		rest.Content = append(rest.Content, n.Content[i], n.Content[i+1])
	}
	if !hasIndex {
		rest = n
	}
	v, err := readYAMLValue(rest)
	arg.Value = v
	return arg, err
}

// readYAMLValue converts a node to a declarative value. Scalars are
// literals, sequences lists and mappings maps, except for single-key
// mappings using one of the reserved keys ref, bean, value, null and map.
func readYAMLValue(n *yaml.Node) (container.Value, error) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return container.NullValue(), nil
		}
		return container.LiteralValue(n.Value), nil

	case yaml.SequenceNode:
		items := make([]container.Value, 0, len(n.Content))
		for i, item := range n.Content {
			v, err := readYAMLValue(item)
			if err != nil {
				return container.Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, v)
		}
		return container.ListValue(items...), nil

	case yaml.MappingNode:
		if len(n.Content) == 2 && reservedValueKeys[n.Content[0].Value] {
			return readTypedValue(n.Content[0].Value, resolveAlias(n.Content[1]))
		}
		return readYAMLMap(n)
	}
	return container.Value{}, yamlError(n, "unsupported value")
}

func readTypedValue(key string, v *yaml.Node) (container.Value, error) {
	switch key {
	case keyRef:
		name, err := scalar(v)
		if err != nil {
			return container.Value{}, err
		}
		if name == "" {
			return container.Value{}, yamlError(v, "ref needs a bean name")
		}
		return container.RefValue(name), nil
	case keyBean:
		decl, err := readYAMLBean(v)
		if err != nil {
			return container.Value{}, fmt.Errorf("inner bean: %w", err)
		}
		return container.BeanValue(decl.def), nil
	case keyValue:
		return readYAMLValue(v)
	case keyNull:
		return container.NullValue(), nil
	default:
		return readYAMLMap(v)
	}
}

func readYAMLMap(n *yaml.Node) (container.Value, error) {
	var entries []container.MapEntry
	err := eachPair(n, func(key string, v *yaml.Node) error {
		value, err := readYAMLValue(v)
		if err != nil {
			return fmt.Errorf("entry %q: %w", key, err)
		}
		entries = append(entries, container.MapEntry{Key: key, Value: value})
		return nil
	})
	if err != nil {
		return container.Value{}, err
	}
	return container.MapValue(entries...), nil
}

// WriteYAML writes the definitions and aliases of registry in the YAML
// definition format, in registration order
func WriteYAML(w io.Writer, registry container.DefinitionRegistry) error {
	beans := mappingNode()
	aliases := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

	for _, name := range registry.BeanDefinitionNames() {
		def, err := registry.GetBeanDefinition(name)
		if err != nil {
			return err
		}
		addPair(beans, name, beanNode(def))
		for _, alias := range registry.GetAliases(name) {
			entry := mappingNode()
			addPair(entry, "name", strNode(name))
			addPair(entry, "alias", strNode(alias))
			aliases.Content = append(aliases.Content, entry)
		}
	}

	root := mappingNode()
	addPair(root, "beans", beans)
	if len(aliases.Content) > 0 {
		addPair(root, "aliases", aliases)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode definitions: %w", err)
	}
	return enc.Close()
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func addPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, strNode(key), value)
}

func beanNode(def *container.BeanDefinition) *yaml.Node {
	n := mappingNode()
	optional := func(key, value string) {
		if value != "" {
			addPair(n, key, strNode(value))
		}
	}
	optional("class", def.ClassName)
	optional("parent", def.Parent)
	optional("scope", string(def.Scope))
	if def.Abstract {
		addPair(n, "abstract", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	}
	if def.LazyInit {
		addPair(n, "lazy-init", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	}
	if len(def.DependsOn) > 0 {
		deps := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, dep := range def.DependsOn {
			deps.Content = append(deps.Content, strNode(dep))
		}
		addPair(n, "depends-on", deps)
	}
	optional("init-method", def.InitMethod)
	optional("destroy-method", def.DestroyMethod)
	optional("description", def.Description)

	if len(def.Properties) > 0 {
		props := mappingNode()
		for _, p := range def.Properties {
			addPair(props, p.Name, valueNode(p.Value))
		}
		addPair(n, "properties", props)
	}
	if len(def.ConstructorArgs) > 0 {
		args := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, arg := range def.ConstructorArgs {
			item := mappingNode()
			if arg.Index >= 0 {
				addPair(item, "index", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(arg.Index)})
			}
			addPair(item, keyValue, valueNode(arg.Value))
			args.Content = append(args.Content, item)
		}
		addPair(n, "constructor-args", args)
	}
	return n
}

func valueNode(v container.Value) *yaml.Node {
	switch v.Kind {
	case container.KindRef:
		n := mappingNode()
		addPair(n, keyRef, strNode(v.Ref))
		return n
	case container.KindBean:
		n := mappingNode()
		addPair(n, keyBean, beanNode(v.Bean))
		return n
	case container.KindList:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Items {
			n.Content = append(n.Content, valueNode(item))
		}
		return n
	case container.KindMap:
		m := mappingNode()
		for _, entry := range v.Entries {
			addPair(m, entry.Key, valueNode(entry.Value))
		}
		if len(v.Entries) == 1 && reservedValueKeys[v.Entries[0].Key] {
			wrapped := mappingNode()
			addPair(wrapped, keyMap, m)
			return wrapped
		}
		return m
	case container.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	default:
		return strNode(v.Literal)
	}
}
