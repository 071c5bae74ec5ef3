// Package reader loads bean definitions from XML and YAML resources into a
// definition registry.
package reader

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/01fortes/beanboot/pkg/container"
	"github.com/01fortes/beanboot/pkg/resource"
)

// BeanDefinitionReader loads definitions from resources into a registry
type BeanDefinitionReader interface {
	// LoadBeanDefinitions loads every resource and returns the number of
	// definitions registered, imports included
	LoadBeanDefinitions(res ...resource.Resource) (int, error)
	// Registry returns the registry definitions are loaded into
	Registry() container.DefinitionRegistry
}

// Format identifies a definition file syntax
type Format string

const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by a resource's extension
func FormatOf(res resource.Resource) (Format, bool) {
	switch resource.Ext(res) {
	case ".xml":
		return FormatXML, true
	case ".yml", ".yaml":
		return FormatYAML, true
	}
	return "", false
}

// Options configure a reader
type Options struct {
	// Environment decides which profile-specific sections are loaded and
	// resolves placeholders in import locations. Defaults to an environment
	// built from GO_BOOT_ACTIVE_PROFILES.
	Environment *container.Environment
	// ClassPath roots for classpath: imports (resource.DefaultClassPath if nil)
	ClassPath []string
	// Types is consulted for default init and destroy methods (container.Types if nil)
	Types *container.TypeRegistry
	// Logger (uses slog.Default if nil)
	Logger *slog.Logger
}

// Reader reads definition files. Resources with a .xml, .yml or .yaml
// extension are parsed by that extension; anything else uses the reader's
// own format. A Reader is not safe for concurrent use.
type Reader struct {
	registry container.DefinitionRegistry
	format   Format
	env      *container.Environment
	roots    []string
	types    *container.TypeRegistry
	logger   *slog.Logger

	// loading holds the descriptions of resources currently being read
	loading []string
}

// New creates a reader for registry that defaults to format
func New(registry container.DefinitionRegistry, format Format, opts Options) *Reader {
	r := &Reader{
		registry: registry,
		format:   format,
		env:      opts.Environment,
		roots:    opts.ClassPath,
		types:    opts.Types,
		logger:   opts.Logger,
	}
	if r.env == nil {
		r.env = container.NewEnvironment()
	}
	if r.roots == nil {
		r.roots = resource.DefaultClassPath()
	}
	if r.types == nil {
		r.types = container.Types
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// NewXMLReader creates a reader for XML definition files
func NewXMLReader(registry container.DefinitionRegistry, opts Options) *Reader {
	return New(registry, FormatXML, opts)
}

// NewYAMLReader creates a reader for YAML definition files
func NewYAMLReader(registry container.DefinitionRegistry, opts Options) *Reader {
	return New(registry, FormatYAML, opts)
}

// ForResource creates a reader matching the extension of res
func ForResource(registry container.DefinitionRegistry, res resource.Resource, opts Options) (*Reader, error) {
	format, ok := FormatOf(res)
	if !ok {
		return nil, container.DefinitionStoreError(res.Description(), "cannot tell the definition format from the file extension", nil)
	}
	return New(registry, format, opts), nil
}

// Registry returns the registry definitions are loaded into
func (r *Reader) Registry() container.DefinitionRegistry {
	return r.registry
}

// LoadBeanDefinitions loads every resource in order
func (r *Reader) LoadBeanDefinitions(res ...resource.Resource) (int, error) {
	total := 0
	for _, one := range res {
		n, err := r.load(one)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Reader) load(res resource.Resource) (int, error) {
	desc := res.Description()
	for _, loading := range r.loading {
		if loading == desc {
			return 0, container.DefinitionStoreError(desc, "detected cyclic loading, check your import definitions", nil)
		}
	}
	r.loading = append(r.loading, desc)
	defer func() { r.loading = r.loading[:len(r.loading)-1] }()

	r.logger.Info("Loading bean definitions", "resource", desc)

	data, err := resource.ReadAll(res)
	if err != nil {
		return 0, container.DefinitionStoreError(desc, "cannot read resource", err)
	}

	format, ok := FormatOf(res)
	if !ok {
		format = r.format
	}

	var docs []*document
	switch format {
	case FormatXML:
		var doc *document
		doc, err = parseXML(data)
		docs = []*document{doc}
	case FormatYAML:
		docs, err = parseYAML(data)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return 0, container.DefinitionStoreError(desc, "cannot parse bean definitions", err)
	}

	l := &resourceLoad{reader: r, res: res, used: make(map[string]bool)}
	for _, doc := range docs {
		if err := l.register(doc, defaults{}); err != nil {
			return l.count, err
		}
	}
	r.logger.Debug("Bean definitions loaded", "resource", desc, "count", l.count)
	return l.count, nil
}

// document is the format-independent content of one <beans> element or
// YAML document
type document struct {
	profile  string
	defaults defaults
	elements []element
}

type defaults struct {
	lazyInit      string
	initMethod    string
	destroyMethod string
}

// inherit fills unset values from the enclosing element
func (d defaults) inherit(outer defaults) defaults {
	if d.lazyInit == "" || d.lazyInit == "default" {
		d.lazyInit = outer.lazyInit
	}
	if d.initMethod == "" {
		d.initMethod = outer.initMethod
	}
	if d.destroyMethod == "" {
		d.destroyMethod = outer.destroyMethod
	}
	return d
}

// element is exactly one of an import, an alias, a bean or a nested document
type element struct {
	imp    string
	alias  *aliasDecl
	bean   *beanDecl
	nested *document
}

type aliasDecl struct {
	name  string
	alias string
}

type beanDecl struct {
	id   string
	name string
	// lazyInit is "true", "false" or empty for the enclosing default
	lazyInit string
	def      *container.BeanDefinition
}

// resourceLoad registers the content of one resource
type resourceLoad struct {
	reader *Reader
	res    resource.Resource
	used   map[string]bool
	count  int
}

func (l *resourceLoad) register(doc *document, outer defaults) error {
	desc := l.res.Description()
	if doc.profile != "" && !l.reader.env.AcceptsProfiles(doc.profile) {
		l.reader.logger.Debug("Skipping definitions for inactive profile", "resource", desc, "profile", doc.profile)
		return nil
	}
	defs := doc.defaults.inherit(outer)

	for _, el := range doc.elements {
		var err error
		switch {
		case el.imp != "":
			err = l.importResource(el.imp)
		case el.alias != nil:
			err = l.registerAlias(el.alias.name, el.alias.alias)
		case el.bean != nil:
			err = l.registerBean(el.bean, defs)
		case el.nested != nil:
			err = l.register(el.nested, defs)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *resourceLoad) importResource(location string) error {
	desc := l.res.Description()
	location, err := l.reader.env.Resolve(location)
	if err != nil {
		return container.DefinitionStoreError(desc, "cannot resolve import location", err)
	}

	var imported resource.Resource
	if strings.HasPrefix(location, resource.ClassPathPrefix) || strings.HasPrefix(location, resource.FilePrefix) {
		imported = resource.Resolve(location, l.reader.roots)
	} else {
		imported, err = l.res.CreateRelative(location)
		if err != nil {
			return container.DefinitionStoreError(desc, fmt.Sprintf("cannot import [%s]", location), err)
		}
	}

	l.reader.logger.Debug("Importing bean definitions", "resource", desc, "import", imported.Description())
	n, err := l.reader.load(imported)
	l.count += n
	return err
}

func (l *resourceLoad) registerAlias(name, alias string) error {
	if name == "" || alias == "" {
		return container.DefinitionStoreError(l.res.Description(), "alias needs both name and alias", nil)
	}
	if err := l.reader.registry.RegisterAlias(name, alias); err != nil {
		return container.DefinitionStoreError(l.res.Description(), fmt.Sprintf("cannot register alias '%s' for bean '%s'", alias, name), err)
	}
	return nil
}

func (l *resourceLoad) registerBean(decl *beanDecl, defs defaults) error {
	desc := l.res.Description()
	def := decl.def
	def.Source = desc

	switch decl.lazyInit {
	case "true":
		def.LazyInit = true
	case "false":
		def.LazyInit = false
	default:
		def.LazyInit = defs.lazyInit == "true"
	}
	if def.InitMethod == "" && defs.initMethod != "" && l.reader.hasMethod(def.ClassName, defs.initMethod) {
		def.InitMethod = defs.initMethod
	}
	if def.DestroyMethod == "" && defs.destroyMethod != "" && l.reader.hasMethod(def.ClassName, defs.destroyMethod) {
		def.DestroyMethod = defs.destroyMethod
	}

	id := decl.id
	aliases := splitNames(decl.name)
	if id == "" && len(aliases) > 0 {
		id, aliases = aliases[0], aliases[1:]
	}
	if id == "" {
		generated, classAlias, err := l.generateName(def)
		if err != nil {
			return err
		}
		id = generated
		if classAlias != "" {
			aliases = append(aliases, classAlias)
		}
	}

	for _, name := range append([]string{id}, aliases...) {
		if l.used[name] {
			return container.DefinitionStoreError(desc, fmt.Sprintf("bean name '%s' is already used in this resource", name), nil)
		}
	}
	for _, name := range append([]string{id}, aliases...) {
		l.used[name] = true
	}

	if err := l.reader.registry.RegisterBeanDefinition(id, def); err != nil {
		return container.DefinitionStoreError(desc, fmt.Sprintf("cannot register bean '%s'", id), err)
	}
	l.count++
	for _, alias := range aliases {
		if err := l.registerAlias(id, alias); err != nil {
			return err
		}
	}
	return nil
}

// generateName names an anonymous bean "<class>#<n>". The first anonymous
// bean of a class is also aliased by the class name.
func (l *resourceLoad) generateName(def *container.BeanDefinition) (string, string, error) {
	base := def.ClassName
	if base == "" && def.Parent != "" {
		base = def.Parent + "$child"
	}
	if base == "" {
		return "", "", container.DefinitionStoreError(l.res.Description(), "anonymous bean needs a class or a parent", nil)
	}

	n := 0
	for {
		name := fmt.Sprintf("%s#%d", base, n)
		if !l.reader.registry.ContainsBeanDefinition(name) && !l.used[name] {
			break
		}
		n++
	}
	name := fmt.Sprintf("%s#%d", base, n)

	classAlias := ""
	if n == 0 && def.ClassName != "" && !l.reader.registry.ContainsBeanDefinition(def.ClassName) && !l.used[def.ClassName] {
		classAlias = def.ClassName
	}
	return name, classAlias, nil
}

// hasMethod reports whether instances of className have a method named method
func (r *Reader) hasMethod(className, method string) bool {
	t, ok := r.types.Lookup(className)
	if !ok {
		return false
	}
	if t.Kind() != reflect.Ptr && t.Kind() != reflect.Interface {
		t = reflect.PointerTo(t)
	}
	_, ok = t.MethodByName(method)
	return ok
}

// splitNames splits a name attribute on commas, semicolons and spaces
func splitNames(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "default":
		return false, nil
	case "true":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
