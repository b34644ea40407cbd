package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/viant/afs/url"
)

// SchemeDisk names artifacts stored on an environment's storage root
const SchemeDisk = "disk"

// ErrUnknownEnvironment is returned when no storage root is registered for an environment code
var ErrUnknownEnvironment = errors.New("locator: unknown environment")

// Resolver maps locations onto storage URLs understood by afs
type Resolver struct {
	roots map[string]string
}

// Resolve returns storage URL for the supplied location; resources with
// parent directory segments are rejected
func (r *Resolver) Resolve(l *Location) (string, error) {
	if l == nil {
		return "", fmt.Errorf("%w: nil location", ErrMalformedLocation)
	}
	root, ok := r.roots[l.EnvironmentCode]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnknownEnvironment, l.EnvironmentCode)
	}
	if l.Scheme != SchemeDisk {
		return "", fmt.Errorf("%w: unsupported scheme %v", ErrMalformedLocation, l.Scheme)
	}
	resource := strings.Trim(l.Resource(), "/")
	if resource == "" {
		return root, nil
	}
	for _, segment := range strings.Split(strings.ReplaceAll(resource, "\\", "/"), "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: resource %v escapes environment root", ErrMalformedLocation, resource)
		}
	}
	return url.Join(root, resource), nil
}

// ResolveString parses and resolves a textual location
func (r *Resolver) ResolveString(uri string) (string, error) {
	l, err := Parse(uri)
	if err != nil {
		return "", err
	}
	return r.Resolve(l)
}

// NewResolver creates a resolver with environmentCode -> base URL table
func NewResolver(roots map[string]string) *Resolver {
	ret := &Resolver{roots: make(map[string]string, len(roots))}
	for k, v := range roots {
		ret.roots[k] = strings.TrimRight(v, "/")
	}
	return ret
}
