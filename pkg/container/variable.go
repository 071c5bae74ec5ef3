package container

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// ActiveProfilesEnv lists active profiles, comma separated
	ActiveProfilesEnv = "GO_BOOT_ACTIVE_PROFILES"
	// ActiveProfilesVariable can set active profiles from a loaded configuration file
	ActiveProfilesVariable = "goboot.profiles.active"
	// DefaultProfile is active when no other profile is
	DefaultProfile = "default"
)

// Environment holds configuration variables and the active profiles
type Environment struct {
	variables map[string]any
	profiles  []string
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewEnvironment creates an environment. Without explicit profiles the
// GO_BOOT_ACTIVE_PROFILES variable is consulted.
func NewEnvironment(profiles ...string) *Environment {
	if len(profiles) == 0 {
		profiles = splitList(os.Getenv(ActiveProfilesEnv))
	}
	return &Environment{
		variables: make(map[string]any),
		profiles:  normalizeProfiles(profiles),
		logger:    slog.Default(),
	}
}

// SetLogger replaces the logger used by loaders
func (e *Environment) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// RegisterVariable adds or replaces a variable
func (e *Environment) RegisterVariable(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Debug("Registering variable", "name", name, "type", fmt.Sprintf("%T", value))
	e.variables[name] = value
}

// GetVariableRaw returns the stored value or nil
func (e *Environment) GetVariableRaw(name string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.variables[name]
}

// HasVariable checks if a variable exists
func (e *Environment) HasVariable(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.variables[name]
	return ok
}

// GetVariable returns a variable converted to a string, or "" if unset
func (e *Environment) GetVariable(name string) string {
	v, _ := e.lookup(name)
	return v
}

func (e *Environment) lookup(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	value, ok := e.variables[name]
	if !ok {
		return "", false
	}
	if value == nil {
		return "", true
	}

	// Convert value to string if possible
	switch v := value.(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// VariableNames returns all variable names, sorted
func (e *Environment) VariableNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.variables))
	for name := range e.variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveProfiles returns the active profiles
func (e *Environment) ActiveProfiles() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]string(nil), e.profiles...)
}

// SetActiveProfiles replaces the active profiles
func (e *Environment) SetActiveProfiles(profiles ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.profiles = normalizeProfiles(profiles)
}

// AcceptsProfiles evaluates a profile expression such as "dev,local" or
// "!prod". The expression matches when any of its terms matches; an empty
// expression always matches. Without active profiles, "default" is active.
func (e *Environment) AcceptsProfiles(expr string) bool {
	terms := splitList(expr)
	if len(terms) == 0 {
		return true
	}

	active := e.ActiveProfiles()
	if len(active) == 0 {
		active = []string{DefaultProfile}
	}
	isActive := func(p string) bool {
		for _, a := range active {
			if a == p {
				return true
			}
		}
		return false
	}

	for _, term := range terms {
		if strings.HasPrefix(term, "!") {
			if !isActive(strings.TrimPrefix(term, "!")) {
				return true
			}
			continue
		}
		if isActive(term) {
			return true
		}
	}
	return false
}

// Load runs the loaders in order; later loaders override earlier ones
func (e *Environment) Load(loaders ...VariableLoader) error {
	for _, loader := range loaders {
		if err := loader.Load(e); err != nil {
			return err
		}
	}
	return nil
}

// Resolve expands ${key} and ${key:default} placeholders. Placeholders may
// nest, and resolved values are expanded again.
func (e *Environment) Resolve(text string) (string, error) {
	return e.resolve(text, text, map[string]bool{})
}

func (e *Environment) resolve(text, original string, visiting map[string]bool) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(text, "${")
		if start < 0 {
			b.WriteString(text)
			return b.String(), nil
		}
		end := placeholderEnd(text, start+2)
		if end < 0 {
			b.WriteString(text)
			return b.String(), nil
		}
		b.WriteString(text[:start])

		key, def, hasDefault := splitDefault(text[start+2 : end])
		key, err := e.resolve(key, original, visiting)
		if err != nil {
			return "", err
		}
		if visiting[key] {
			return "", ConfigurationError(fmt.Sprintf("circular placeholder reference '%s' in value \"%s\"", key, original), nil)
		}

		value, ok := e.lookup(key)
		if !ok {
			if !hasDefault {
				return "", UnresolvableVariableError(key, original)
			}
			value = def
		}

		visiting[key] = true
		value, err = e.resolve(value, original, visiting)
		delete(visiting, key)
		if err != nil {
			return "", err
		}

		b.WriteString(value)
		text = text[end+1:]
	}
}

// placeholderEnd finds the "}" closing a placeholder whose body starts at from
func placeholderEnd(text string, from int) int {
	depth := 1
	for i := from; i < len(text); i++ {
		switch {
		case strings.HasPrefix(text[i:], "${"):
			depth++
			i++
		case text[i] == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitDefault splits "key:default" on the first colon outside nested placeholders
func splitDefault(body string) (key, def string, ok bool) {
	depth := 0
	for i := 0; i < len(body); i++ {
		switch {
		case strings.HasPrefix(body[i:], "${"):
			depth++
			i++
		case body[i] == '}':
			depth--
		case body[i] == ':' && depth == 0:
			return body[:i], body[i+1:], true
		}
	}
	return body, "", false
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	return fields
}

func normalizeProfiles(profiles []string) []string {
	var result []string
	seen := map[string]bool{}
	for _, p := range profiles {
		for _, term := range splitList(p) {
			if !seen[term] {
				seen[term] = true
				result = append(result, term)
			}
		}
	}
	return result
}

// VariableLoader defines an interface for sources of environment variables
type VariableLoader interface {
	// Load loads variables into the environment
	Load(*Environment) error
}

// YamlVariableLoader loads a YAML file, flattening nested keys with dots
type YamlVariableLoader struct {
	// Path of the YAML file
	Path string
	// Required makes a missing file an error
	Required bool
}

// Load loads variables from the YAML file
func (l YamlVariableLoader) Load(env *Environment) error {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) && !l.Required {
			env.logger.Debug("Config file not found, skipping", "path", l.Path)
			return nil
		}
		return ConfigurationError(fmt.Sprintf("cannot read config file %s", l.Path), err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ConfigurationError(fmt.Sprintf("cannot parse config file %s", l.Path), err)
	}

	env.logger.Info("Loading variables", "path", l.Path)
	flatten("", doc, env)
	return nil
}

func flatten(prefix string, value any, env *Environment) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			flatten(joinKey(prefix, key), child, env)
		}
	case []any:
		env.RegisterVariable(prefix, v)
		for i, child := range v {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), child, env)
		}
	default:
		if prefix != "" {
			env.RegisterVariable(prefix, v)
		}
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// ProfileYamlLoader loads <base>.yml and then <base>-<profile>.yml for every
// active profile, so profile files override the base file
type ProfileYamlLoader struct {
	// ConfigPath is the directory holding the files
	ConfigPath string
	// BaseName defaults to "application"
	BaseName string
	// Profiles overrides the environment's active profiles
	Profiles []string
}

// Load loads the base file and the profile files
func (l ProfileYamlLoader) Load(env *Environment) error {
	base := l.BaseName
	if base == "" {
		base = "application"
	}

	if err := (YamlVariableLoader{Path: l.find(base)}).Load(env); err != nil {
		return err
	}

	profiles := l.Profiles
	if len(profiles) == 0 {
		profiles = env.ActiveProfiles()
	}
	if len(profiles) == 0 {
		// The base file may name the profiles itself
		profiles = splitList(env.GetVariable(ActiveProfilesVariable))
		if len(profiles) > 0 {
			env.SetActiveProfiles(profiles...)
		}
	}

	for _, profile := range profiles {
		if err := (YamlVariableLoader{Path: l.find(base + "-" + profile)}).Load(env); err != nil {
			return err
		}
	}
	return nil
}

// find prefers .yml and falls back to .yaml
func (l ProfileYamlLoader) find(name string) string {
	yml := filepath.Join(l.ConfigPath, name+".yml")
	if _, err := os.Stat(yml); err == nil {
		return yml
	}
	yamlPath := filepath.Join(l.ConfigPath, name+".yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return yml
}

// EnvVariableLoader loads variables from the process environment
type EnvVariableLoader struct {
	// Prefix filters environment variables to only those with this prefix
	Prefix string
}

// Load loads variables from environment
func (l EnvVariableLoader) Load(env *Environment) error {
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]

		// Apply prefix filter if specified
		if l.Prefix != "" {
			if !strings.HasPrefix(key, l.Prefix) {
				continue
			}
			key = strings.TrimPrefix(key, l.Prefix)
		}

		// Convert to lowercase and replace _ with .
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "_", ".")

		env.RegisterVariable(key, value)
	}

	return nil
}

// PropertiesVariableLoader loads variables from .properties files
type PropertiesVariableLoader struct {
	// Path to the properties file
	Path string
}

// Load loads variables from .properties file
func (l PropertiesVariableLoader) Load(env *Environment) error {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			env.logger.Info("Properties file not found, skipping", "path", l.Path)
			return nil
		}
		return ConfigurationError(fmt.Sprintf("cannot read properties file %s", l.Path), err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		// Skip comments and empty lines
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}

		// Split on first separator
		idx := strings.IndexAny(line, "=:")
		if idx < 0 {
			env.RegisterVariable(line, "")
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		env.RegisterVariable(key, value)
	}

	return nil
}
