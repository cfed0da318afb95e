package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the category every fatal startup error belongs to.
// Use errors.Is(err, ErrConfiguration) to detect it.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an invalid field in a fitter definition.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// PathNotFoundError indicates a dotted path that does not resolve in a Tree.
type PathNotFoundError struct {
	Path    string
	Segment string
}

func (e *PathNotFoundError) Error() string {
	if e.Segment != "" && e.Segment != e.Path {
		return fmt.Sprintf("path not found: %s (missing %q)", e.Path, e.Segment)
	}
	return "path not found: " + e.Path
}

func (e *PathNotFoundError) Is(target error) bool {
	return target == ErrConfiguration
}

// NotLeafError indicates a dotted path that resolves to a nested mapping
// where a scalar value is required.
type NotLeafError struct {
	Path string
}

func (e *NotLeafError) Error() string {
	return "path is not a leaf: " + e.Path
}

func (e *NotLeafError) Is(target error) bool {
	return target == ErrConfiguration
}
