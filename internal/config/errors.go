package config

import "fmt"

// DeprecatedOptionError is returned when a removed configuration key is passed.
type DeprecatedOptionError struct {
	Key         string
	Replacement string
}

func (e *DeprecatedOptionError) Error() string {
	return fmt.Sprintf("%s is deprecated - %s", e.Key, e.Replacement)
}

// ConfigTypeError is returned when an environment override cannot be coerced
// to the type of its field.
type ConfigTypeError struct {
	Field    string
	Value    string
	Expected string
	Err      error
}

func (e *ConfigTypeError) Error() string {
	return fmt.Sprintf("could not convert %s=%q to type %s", envName(e.Field), e.Value, e.Expected)
}

func (e *ConfigTypeError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when an explicit value is missing, unknown or
// out of range.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("invalid config value %s=%v: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid config value %s: %s", e.Field, e.Reason)
}
