package container

import (
	"fmt"
	"strings"
)

// Error codes carried by BeanError
const (
	CodeNoSuchBean           = "NO_SUCH_BEAN_DEFINITION"
	CodeNotOfRequiredType    = "BEAN_NOT_OF_REQUIRED_TYPE"
	CodeCircularDependency   = "CIRCULAR_DEPENDENCY"
	CodeBeanCreation         = "BEAN_CREATION_FAILED"
	CodeDefinitionStore      = "DEFINITION_STORE"
	CodeDefinitionOverride   = "DEFINITION_OVERRIDE"
	CodeUnknownClass         = "UNKNOWN_CLASS"
	CodeInvalidProperty      = "INVALID_PROPERTY"
	CodeBeanIsAbstract       = "BEAN_IS_ABSTRACT"
	CodeInvalidDefinition    = "INVALID_DEFINITION"
	CodeConfigurationError   = "CONFIGURATION_ERROR"
	CodeUnresolvableVariable = "UNRESOLVABLE_VARIABLE"
)

// Sentinels for errors.Is; a BeanError matches a sentinel with the same code.
var (
	ErrNoSuchBean           = &BeanError{Code: CodeNoSuchBean}
	ErrNotOfRequiredType    = &BeanError{Code: CodeNotOfRequiredType}
	ErrCircularDependency   = &BeanError{Code: CodeCircularDependency}
	ErrBeanCreation         = &BeanError{Code: CodeBeanCreation}
	ErrDefinitionStore      = &BeanError{Code: CodeDefinitionStore}
	ErrDefinitionOverride   = &BeanError{Code: CodeDefinitionOverride}
	ErrUnknownClass         = &BeanError{Code: CodeUnknownClass}
	ErrInvalidProperty      = &BeanError{Code: CodeInvalidProperty}
	ErrBeanIsAbstract       = &BeanError{Code: CodeBeanIsAbstract}
	ErrInvalidDefinition    = &BeanError{Code: CodeInvalidDefinition}
	ErrUnresolvableVariable = &BeanError{Code: CodeUnresolvableVariable}
)

// BeanError represents an error raised by the bean factory
type BeanError struct {
	Code     string
	Message  string
	BeanName string
	Cause    error
}

// Error implements the error interface
func (e *BeanError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(e.Code, "_", " "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the cause of the error
func (e *BeanError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BeanError with the same code
func (e *BeanError) Is(target error) bool {
	t, ok := target.(*BeanError)
	return ok && t.Code == e.Code
}

// NoSuchBeanDefinitionError returns an error for an unknown bean name
func NoSuchBeanDefinitionError(name string) *BeanError {
	return &BeanError{
		Code:     CodeNoSuchBean,
		Message:  fmt.Sprintf("no bean named '%s' available", name),
		BeanName: name,
	}
}

// BeanNotOfRequiredTypeError returns an error for a typed lookup mismatch
func BeanNotOfRequiredTypeError(name string, expected, actual string) *BeanError {
	return &BeanError{
		Code:     CodeNotOfRequiredType,
		Message:  fmt.Sprintf("bean named '%s' is expected to be of type '%s' but was actually of type '%s'", name, expected, actual),
		BeanName: name,
	}
}

// CircularDependencyError returns an error for a reference cycle
func CircularDependencyError(cycle []string) *BeanError {
	name := ""
	if len(cycle) > 0 {
		name = cycle[0]
	}
	return &BeanError{
		Code:     CodeCircularDependency,
		Message:  fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")),
		BeanName: name,
	}
}

// BeanCreationError returns an error for a bean that failed to be created
func BeanCreationError(name string, cause error) *BeanError {
	return &BeanError{
		Code:     CodeBeanCreation,
		Message:  fmt.Sprintf("error creating bean with name '%s'", name),
		BeanName: name,
		Cause:    cause,
	}
}

// DefinitionStoreError returns an error for a resource that could not be parsed or registered
func DefinitionStoreError(resource string, msg string, cause error) *BeanError {
	return &BeanError{
		Code:    CodeDefinitionStore,
		Message: fmt.Sprintf("%s: %s", resource, msg),
		Cause:   cause,
	}
}

// DefinitionOverrideError returns an error for a forbidden definition override
func DefinitionOverrideError(name string) *BeanError {
	return &BeanError{
		Code:     CodeDefinitionOverride,
		Message:  fmt.Sprintf("cannot register bean definition for bean '%s': there is already a definition bound and overriding is disabled", name),
		BeanName: name,
	}
}

// UnknownClassError returns an error for a class name with no registered Go type
func UnknownClassError(name, className string) *BeanError {
	return &BeanError{
		Code:     CodeUnknownClass,
		Message:  fmt.Sprintf("cannot find class [%s] for bean with name '%s'", className, name),
		BeanName: name,
	}
}

// InvalidPropertyError returns an error for a property that cannot be applied
func InvalidPropertyError(name, property, msg string, cause error) *BeanError {
	return &BeanError{
		Code:     CodeInvalidProperty,
		Message:  fmt.Sprintf("invalid property '%s' of bean '%s': %s", property, name, msg),
		BeanName: name,
		Cause:    cause,
	}
}

// BeanIsAbstractError returns an error for a lookup of an abstract definition
func BeanIsAbstractError(name string) *BeanError {
	return &BeanError{
		Code:     CodeBeanIsAbstract,
		Message:  fmt.Sprintf("bean definition '%s' is abstract", name),
		BeanName: name,
	}
}

// InvalidDefinitionError returns an error for a definition that fails validation
func InvalidDefinitionError(name, msg string) *BeanError {
	return &BeanError{
		Code:     CodeInvalidDefinition,
		Message:  fmt.Sprintf("invalid bean definition '%s': %s", name, msg),
		BeanName: name,
	}
}

// UnresolvableVariableError returns an error for a placeholder with no value
func UnresolvableVariableError(key, text string) *BeanError {
	return &BeanError{
		Code:    CodeUnresolvableVariable,
		Message: fmt.Sprintf("could not resolve placeholder '%s' in value \"%s\"", key, text),
	}
}

// ConfigurationError returns an error for when configuration is invalid
func ConfigurationError(msg string, cause error) *BeanError {
	return &BeanError{
		Code:    CodeConfigurationError,
		Message: msg,
		Cause:   cause,
	}
}
