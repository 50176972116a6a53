// Package registry maps logical service names to backend base URLs.
package registry

import (
	"errors"
	"sort"
	"strings"
)

// ErrServiceNotFound is returned when no route exists for a service name.
var ErrServiceNotFound = errors.New("service not found")

// Route is a single service entry. Routes are loaded at startup and
// immutable for the life of the process.
type Route struct {
	Name    string
	BaseURL string
}

// Registry resolves service names to routes. It is a pure lookup with
// no side effects, safe for concurrent use.
type Registry struct {
	routes map[string]Route
	names  []string
}

// New builds a registry from a name -> base URL map. Trailing slashes
// on base URLs are stripped so path joining stays predictable.
func New(services map[string]string) *Registry {
	r := &Registry{routes: make(map[string]Route, len(services))}
	for name, baseURL := range services {
		r.routes[name] = Route{
			Name:    name,
			BaseURL: strings.TrimRight(baseURL, "/"),
		}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// Resolve returns the route for a service name.
func (r *Registry) Resolve(name string) (Route, error) {
	route, ok := r.routes[name]
	if !ok {
		return Route{}, ErrServiceNotFound
	}
	return route, nil
}

// Names returns the configured service names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
