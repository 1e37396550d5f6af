package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"conduit-hq/conduit/internal/relaytest"
	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/catalog"
	"conduit-hq/conduit/pkg/health"
	"conduit-hq/conduit/pkg/limits/ratelimit"
	"conduit-hq/conduit/pkg/proxy"
	"conduit-hq/conduit/pkg/proxy/middleware"
	"conduit-hq/conduit/pkg/registry"
	"conduit-hq/conduit/pkg/relay"
	"conduit-hq/conduit/pkg/routing"
	"conduit-hq/conduit/pkg/secrets"
	"conduit-hq/conduit/pkg/tenant"
)

// harness wires real registry, routing, and dispatch components over
// scripted adapters for handler-level tests.
type harness struct {
	registry   *registry.Registry
	book       *health.Book
	dispatcher *proxy.Dispatcher

	mu       sync.Mutex
	adapters map[string]*relaytest.MockAdapter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{adapters: map[string]*relaytest.MockAdapter{}}

	store, err := registry.NewStore(&registry.StoreConfig{
		Path: filepath.Join(t.TempDir(), "channels.db"),
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.NewStore([]*catalog.Descriptor{
		{
			ID:     "mock",
			Models: []string{"mock-large"},
			ErrorRules: []catalog.ErrorRule{
				{Status: 500, Kind: relay.KindServerError},
			},
		},
	})
	if err != nil {
		t.Fatalf("catalog.NewStore() error = %v", err)
	}
	vault, err := secrets.NewAESVault("handler-test")
	if err != nil {
		t.Fatalf("NewAESVault() error = %v", err)
	}

	adapterReg := adapters.NewRegistry()
	adapterReg.Register("mock", func(cfg adapters.Config) (adapters.Adapter, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if a, ok := h.adapters[cfg.ChannelID]; ok {
			return a, nil
		}
		return relaytest.NewMockAdapter("mock"), nil
	})

	h.registry = registry.New(store, cat, vault, adapterReg, &registry.Config{
		ProbeTimeout:    time.Second,
		UpstreamTimeout: time.Second,
	})
	h.book = health.NewBook()
	sel := routing.NewSelector(h.registry, h.book, &routing.Config{Cooldown: 5 * time.Minute})
	h.dispatcher = proxy.NewDispatcher(
		sel, h.registry, cat, h.book, ratelimit.NewChannelLimiter(),
		nil, nil, nil, nil,
	)
	return h
}

func (h *harness) addChannel(t *testing.T, tenantID, name string, mock *relaytest.MockAdapter) *registry.Channel {
	t.Helper()
	ch, err := h.registry.Register(context.Background(), &registry.RegisterInput{
		TenantID:     tenantID,
		DescriptorID: "mock",
		Name:         name,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", name, err)
	}
	h.mu.Lock()
	h.adapters[ch.ID] = mock
	h.mu.Unlock()
	return ch
}

// asTenant stamps the request context the way the auth middleware does.
func asTenant(r *http.Request, t *tenant.Tenant) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.TenantKey, t)
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-test")
	return r.WithContext(ctx)
}

func adminTenant(id string) *tenant.Tenant {
	return &tenant.Tenant{ID: id, Name: id, Admin: true}
}
