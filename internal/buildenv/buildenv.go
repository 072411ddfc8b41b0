// Package buildenv detects whether a build runs under continuous integration
// or on a developer workstation.
package buildenv

import "os"

// DefaultMarker is the variable whose presence marks a CI build.
const DefaultMarker = "CI"

// Environment is the context a build runs in.
type Environment string

const (
	// CI is a continuous-integration runner; credentials come from secrets.
	CI Environment = "ci"
	// Local is a developer workstation; credentials come from key.properties.
	Local Environment = "local"
)

// String returns the environment name.
func (e Environment) String() string {
	return string(e)
}

// IsCI reports whether e is the CI environment.
func (e Environment) IsCI() bool {
	return e == CI
}

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// OSLookup reads the process environment.
func OSLookup() LookupFunc {
	return os.LookupEnv
}

// MapLookup serves values from a fixed map.
func MapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// Detect returns CI when marker is present, whatever its value, and Local otherwise.
func Detect(lookup LookupFunc, marker string) Environment {
	if lookup == nil {
		return Local
	}
	if marker == "" {
		marker = DefaultMarker
	}
	if _, ok := lookup(marker); ok {
		return CI
	}
	return Local
}

// Parse maps a configured override ("ci", "local") to an Environment.
func Parse(raw string) (Environment, bool) {
	switch Environment(raw) {
	case CI:
		return CI, true
	case Local:
		return Local, true
	default:
		return "", false
	}
}
