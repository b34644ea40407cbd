// Package locator parses and formats addressable resource locations of the
// form scheme://environmentCode[/resourceCode] used to name artifacts.
package locator

import (
	"errors"
	"fmt"
	"strings"
)

const separator = "://"

// ErrMalformedLocation is returned when a location string cannot be parsed.
var ErrMalformedLocation = errors.New("locator: malformed location")

// Location represents a parsed resource location. It is immutable once parsed.
type Location struct {
	Scheme          string  `json:"scheme" yaml:"scheme"`
	EnvironmentCode string  `json:"environmentCode" yaml:"environmentCode"`
	ResourceCode    *string `json:"resourceCode,omitempty" yaml:"resourceCode,omitempty"`
}

// HasResource reports whether a resource code follows the environment code
func (l *Location) HasResource() bool {
	return l != nil && l.ResourceCode != nil
}

// Resource returns resource code or empty string
func (l *Location) Resource() string {
	if !l.HasResource() {
		return ""
	}
	return *l.ResourceCode
}

// String formats the location back to its textual form
func (l *Location) String() string {
	return Format(l)
}

// Parse parses scheme://environmentCode[/resourceCode]
func Parse(uri string) (*Location, error) {
	index := strings.Index(uri, separator)
	if index == -1 {
		return nil, fmt.Errorf("%w: %q: missing %q", ErrMalformedLocation, uri, separator)
	}
	scheme := uri[:index]
	if scheme == "" {
		return nil, fmt.Errorf("%w: %q: empty scheme", ErrMalformedLocation, uri)
	}
	remainder := uri[index+len(separator):]
	ret := &Location{Scheme: scheme}
	if slash := strings.IndexByte(remainder, '/'); slash != -1 {
		resource := remainder[slash+1:]
		ret.EnvironmentCode = remainder[:slash]
		ret.ResourceCode = &resource
	} else {
		ret.EnvironmentCode = remainder
	}
	if ret.EnvironmentCode == "" {
		return nil, fmt.Errorf("%w: %q: empty environment code", ErrMalformedLocation, uri)
	}
	return ret, nil
}

// Format returns textual location; Format(Parse(s)) == s for well-formed s
func Format(l *Location) string {
	if l == nil {
		return ""
	}
	ret := l.Scheme + separator + l.EnvironmentCode
	if l.ResourceCode != nil {
		ret += "/" + *l.ResourceCode
	}
	return ret
}

// New creates a location with optional resource code
func New(scheme, environmentCode string, resourceCode ...string) *Location {
	ret := &Location{Scheme: scheme, EnvironmentCode: environmentCode}
	if len(resourceCode) > 0 {
		code := resourceCode[0]
		ret.ResourceCode = &code
	}
	return ret
}
