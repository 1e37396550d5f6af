// Package tenant resolves the authenticated tenant for every inbound
// call. The router consumes identity; it never issues or manages it.
package tenant

import (
	"errors"
	"net/http"
	"strings"
	"sync"
)

// ErrUnauthorized is returned when a request carries no valid API key.
var ErrUnauthorized = errors.New("unauthorized")

// Tenant is the authenticated caller identity.
type Tenant struct {
	// ID is the tenant identifier that scopes channels and requests
	ID string `json:"id"`

	// Name is the human-readable tenant name
	Name string `json:"name"`

	// Admin grants access to the channel administration endpoints
	Admin bool `json:"admin"`
}

// Resolver maps an inbound request to its tenant.
type Resolver interface {
	// Resolve returns the tenant for the request, or ErrUnauthorized.
	Resolve(r *http.Request) (*Tenant, error)
}

// APIKey is one configured key and the tenant it authenticates.
type APIKey struct {
	Key     string `yaml:"key" json:"key"`
	Tenant  Tenant `yaml:"tenant" json:"tenant"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// StaticResolver authenticates requests against a configured key set.
// Keys arrive as "Authorization: Bearer <key>" or "X-API-Key: <key>".
type StaticResolver struct {
	mu   sync.RWMutex
	keys map[string]*APIKey
}

// NewStaticResolver creates a resolver over the given keys.
func NewStaticResolver(keys []*APIKey) *StaticResolver {
	keyMap := make(map[string]*APIKey, len(keys))
	for _, k := range keys {
		keyMap[k.Key] = k
	}
	return &StaticResolver{keys: keyMap}
}

// Resolve implements Resolver.
func (s *StaticResolver) Resolve(r *http.Request) (*Tenant, error) {
	key := extractKey(r)
	if key == "" {
		return nil, ErrUnauthorized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.keys[key]
	if !ok || !info.Enabled {
		return nil, ErrUnauthorized
	}
	t := info.Tenant
	return &t, nil
}

// Replace swaps the full key set, for config hot reload.
func (s *StaticResolver) Replace(keys []*APIKey) {
	keyMap := make(map[string]*APIKey, len(keys))
	for _, k := range keys {
		keyMap[k.Key] = k
	}

	s.mu.Lock()
	s.keys = keyMap
	s.mu.Unlock()
}

func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return r.Header.Get("X-API-Key")
}
