package container

// Starter customizes a factory after its definitions are loaded and before
// any singleton is created: registering singletons, post-processors or
// extra definitions. This allows modular "starters" like in Spring Boot.
type Starter interface {
	// Name returns the name of this starter
	Name() string

	// Start is called with the factory and its environment (which may be nil)
	Start(factory ConfigurableBeanFactory, env *Environment) error
}

// ConditionalStarter is a starter that can determine whether it should be applied
type ConditionalStarter interface {
	Starter

	// ShouldStart determines whether this starter should be applied
	ShouldStart(factory ConfigurableBeanFactory, env *Environment) bool
}

// Condition decides whether a conditional starter applies
type Condition func(factory ConfigurableBeanFactory, env *Environment) bool

// StarterFunc is a simple implementation of Starter using a function
type StarterFunc struct {
	name string
	fn   func(ConfigurableBeanFactory, *Environment) error
}

// Name returns the name of the starter
func (s *StarterFunc) Name() string {
	return s.name
}

// Start calls the function
func (s *StarterFunc) Start(factory ConfigurableBeanFactory, env *Environment) error {
	return s.fn(factory, env)
}

// NewStarter creates a new starter with the given name and function
func NewStarter(name string, fn func(ConfigurableBeanFactory, *Environment) error) Starter {
	return &StarterFunc{
		name: name,
		fn:   fn,
	}
}

// CompositeStarter combines multiple starters into one
type CompositeStarter struct {
	name     string
	starters []Starter
}

// Name returns the name of the starter
func (s *CompositeStarter) Name() string {
	return s.name
}

// Start applies all the starters in sequence, honoring their conditions
func (s *CompositeStarter) Start(factory ConfigurableBeanFactory, env *Environment) error {
	return ApplyStarters(factory, env, s.starters...)
}

// NewCompositeStarter creates a new composite starter
func NewCompositeStarter(name string, starters ...Starter) Starter {
	return &CompositeStarter{
		name:     name,
		starters: starters,
	}
}

// ConditionalStarterFunc is a simple implementation of ConditionalStarter using functions
type ConditionalStarterFunc struct {
	StarterFunc
	condition Condition
}

// ShouldStart determines whether this starter should be applied
func (s *ConditionalStarterFunc) ShouldStart(factory ConfigurableBeanFactory, env *Environment) bool {
	return s.condition(factory, env)
}

// NewConditionalStarter creates a new conditional starter
func NewConditionalStarter(name string, condition Condition, fn func(ConfigurableBeanFactory, *Environment) error) ConditionalStarter {
	return &ConditionalStarterFunc{
		StarterFunc: StarterFunc{
			name: name,
			fn:   fn,
		},
		condition: condition,
	}
}

// ApplyStarters runs the starters in order, skipping conditional starters
// whose condition does not hold
func ApplyStarters(factory ConfigurableBeanFactory, env *Environment, starters ...Starter) error {
	for _, s := range starters {
		if cs, ok := s.(ConditionalStarter); ok && !cs.ShouldStart(factory, env) {
			continue
		}
		if err := s.Start(factory, env); err != nil {
			return ConfigurationError("starter "+s.Name()+" failed", err)
		}
	}
	return nil
}

// PropertyCondition checks if a variable has a specific value
func PropertyCondition(property, expectedValue string) Condition {
	return func(_ ConfigurableBeanFactory, env *Environment) bool {
		return env != nil && env.GetVariable(property) == expectedValue
	}
}

// PropertyExistsCondition checks if a variable exists
func PropertyExistsCondition(property string) Condition {
	return func(_ ConfigurableBeanFactory, env *Environment) bool {
		return env != nil && env.HasVariable(property)
	}
}

// ProfileCondition checks a profile expression such as "dev,!prod"
func ProfileCondition(expr string) Condition {
	return func(_ ConfigurableBeanFactory, env *Environment) bool {
		if env == nil {
			return NewEnvironment().AcceptsProfiles(expr)
		}
		return env.AcceptsProfiles(expr)
	}
}

// BeanExistsCondition checks if a bean exists
func BeanExistsCondition(name string) Condition {
	return func(factory ConfigurableBeanFactory, _ *Environment) bool {
		return factory.ContainsBean(name)
	}
}

// BeanMissingCondition checks that no bean with the name exists
func BeanMissingCondition(name string) Condition {
	return func(factory ConfigurableBeanFactory, _ *Environment) bool {
		return !factory.ContainsBean(name)
	}
}
