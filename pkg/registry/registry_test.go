package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"conduit-hq/conduit/internal/relaytest"
	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/catalog"
	"conduit-hq/conduit/pkg/relay"
	"conduit-hq/conduit/pkg/secrets"
)

// newTestRegistry builds a registry over a temp SQLite store, a "mock"
// descriptor, and a shared scriptable adapter.
func newTestRegistry(t *testing.T) (*Registry, *relaytest.MockAdapter) {
	t.Helper()

	store, err := NewStore(&StoreConfig{Path: filepath.Join(t.TempDir(), "channels.db")})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.NewStore([]*catalog.Descriptor{
		{
			ID:             "mock",
			DisplayName:    "Mock",
			DefaultBaseURL: "http://mock.local",
			CredentialFields: []catalog.CredentialField{
				{Name: "api_key", Required: true},
			},
			Models: []string{"mock-large", "mock-small"},
		},
	})
	if err != nil {
		t.Fatalf("catalog.NewStore() error = %v", err)
	}

	vault, err := secrets.NewAESVault("registry-test")
	if err != nil {
		t.Fatalf("NewAESVault() error = %v", err)
	}

	mock := relaytest.NewMockAdapter("mock")
	adapterReg := adapters.NewRegistry()
	adapterReg.Register("mock", func(adapters.Config) (adapters.Adapter, error) {
		return mock, nil
	})

	reg := New(store, cat, vault, adapterReg, &Config{
		ProbeTimeout:    time.Second,
		UpstreamTimeout: time.Second,
	})
	return reg, mock
}

func registerInput() *RegisterInput {
	return &RegisterInput{
		TenantID:     "tenant-a",
		DescriptorID: "mock",
		Name:         "primary",
		Credentials:  map[string]string{"api_key": "key-1"},
	}
}

func TestRegisterProbesAndPersists(t *testing.T) {
	reg, mock := newTestRegistry(t)
	ctx := context.Background()

	ch, err := reg.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if ch.Status != StatusActive {
		t.Errorf("status = %v, want active", ch.Status)
	}
	if ch.Weight != 100 {
		t.Errorf("default weight = %d, want 100", ch.Weight)
	}
	if mock.ProbeCalls != 1 {
		t.Errorf("ProbeCalls = %d, want 1", mock.ProbeCalls)
	}

	stored, err := reg.Get(ctx, ch.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(stored.EncryptedCredentials) == 0 {
		t.Error("credentials not sealed into the store")
	}

	events, _ := reg.RecentEvents(ctx, ch.ID, 10)
	if len(events) != 1 || events[0].Kind != EventProbe || !events[0].OK {
		t.Errorf("events = %+v, want one successful probe", events)
	}
}

func TestRegisterFailedProbeRejects(t *testing.T) {
	reg, mock := newTestRegistry(t)
	mock.FailProbe(&adapters.UpstreamError{Provider: "mock", Status: 401, Body: "bad key"})

	_, err := reg.Register(context.Background(), registerInput())

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Register() error = %v, want ValidationError", err)
	}
	if verr.Field != "credentials" {
		t.Errorf("ValidationError field = %q, want credentials", verr.Field)
	}

	// Nothing persisted.
	channels, _ := reg.List(context.Background(), "tenant-a")
	if len(channels) != 0 {
		t.Errorf("List() after failed registration = %d channels, want 0", len(channels))
	}
}

func TestRegisterSkipProbe(t *testing.T) {
	reg, mock := newTestRegistry(t)

	in := registerInput()
	in.SkipProbe = true
	ch, err := reg.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if ch.Status != StatusTesting {
		t.Errorf("status = %v, want testing", ch.Status)
	}
	if mock.ProbeCalls != 0 {
		t.Errorf("ProbeCalls = %d, want 0", mock.ProbeCalls)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"unknown descriptor", func(in *RegisterInput) { in.DescriptorID = "nope" }, "descriptor_id"},
		{"empty name", func(in *RegisterInput) { in.Name = "" }, "name"},
		{"empty tenant", func(in *RegisterInput) { in.TenantID = "" }, "tenant_id"},
		{"negative weight", func(in *RegisterInput) { in.Weight = -1 }, "weight"},
		{"missing credential", func(in *RegisterInput) { in.Credentials = nil }, "credentials"},
		{"unsupported model", func(in *RegisterInput) { in.Models = []string{"gpt-4o"} }, "models"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := registerInput()
			tt.mutate(in)
			_, err := reg.Register(ctx, in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Register() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestListForModel(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	all, _ := reg.Register(ctx, registerInput()) // no model restriction

	restricted := registerInput()
	restricted.Name = "small-only"
	restricted.Models = []string{"mock-small"}
	small, _ := reg.Register(ctx, restricted)

	inactive := registerInput()
	inactive.Name = "disabled"
	disabled, _ := reg.Register(ctx, inactive)
	if err := reg.Deactivate(ctx, disabled.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	got, err := reg.ListForModel(ctx, "mock-large", "tenant-a")
	if err != nil {
		t.Fatalf("ListForModel() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != all.ID {
		t.Errorf("ListForModel(mock-large) = %v, want only the unrestricted channel", ids(got))
	}

	got, _ = reg.ListForModel(ctx, "mock-small", "tenant-a")
	if len(got) != 2 {
		t.Fatalf("ListForModel(mock-small) = %v, want 2 channels", ids(got))
	}
	// Registration order.
	if got[0].ID != all.ID || got[1].ID != small.ID {
		t.Errorf("ListForModel order = %v, want [%s %s]", ids(got), all.ID, small.ID)
	}

	// Model unknown to the descriptor matches nothing.
	got, _ = reg.ListForModel(ctx, "other-model", "tenant-a")
	if len(got) != 0 {
		t.Errorf("ListForModel(other-model) = %v, want none", ids(got))
	}
}

func TestUpdateChangesFieldsAndInvalidatesAdapter(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	ch, _ := reg.Register(ctx, registerInput())

	weight := 10
	rpm := 30
	updated, err := reg.Update(ctx, ch.ID, &UpdateInput{Weight: &weight, MaxRPM: &rpm})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Weight != 10 || updated.MaxRPM != 30 {
		t.Errorf("updated weight/rpm = %d/%d, want 10/30", updated.Weight, updated.MaxRPM)
	}
	if !updated.UpdatedAt.After(ch.UpdatedAt) && !updated.UpdatedAt.Equal(ch.UpdatedAt) {
		t.Errorf("UpdatedAt not advanced")
	}

	_, err = reg.Update(ctx, "missing", &UpdateInput{Weight: &weight})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTestConnectionPersistsNothing(t *testing.T) {
	reg, mock := newTestRegistry(t)
	ctx := context.Background()

	result, err := reg.TestConnection(ctx, registerInput())
	if err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}
	if !result.OK {
		t.Errorf("TestConnection() result = %+v, want OK", result)
	}
	if mock.ProbeCalls != 1 {
		t.Errorf("ProbeCalls = %d, want 1", mock.ProbeCalls)
	}

	channels, _ := reg.List(ctx, "tenant-a")
	if len(channels) != 0 {
		t.Errorf("TestConnection persisted %d channels, want 0", len(channels))
	}
}

func TestRecordDispatchAppendsEvent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	ch, _ := reg.Register(ctx, registerInput())
	reg.RecordDispatch(ctx, ch.ID, false, relay.KindServerError, 25*time.Millisecond, "upstream 500")

	events, err := reg.RecentEvents(ctx, ch.ID, 10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	// Registration probe plus the dispatch.
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	latest := events[0]
	if latest.Kind != EventDispatch || latest.OK || latest.ErrorKind != string(relay.KindServerError) {
		t.Errorf("latest event = %+v, want failed dispatch with server_error kind", latest)
	}
}

func ids(channels []*Channel) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = ch.ID
	}
	return out
}

func TestProbeReusesCachedAdapter(t *testing.T) {
	store, err := NewStore(&StoreConfig{Path: filepath.Join(t.TempDir(), "channels.db")})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.NewStore([]*catalog.Descriptor{
		{
			ID: "mock",
			CredentialFields: []catalog.CredentialField{
				{Name: "api_key", Required: true},
			},
			Models: []string{"mock-large"},
		},
	})
	if err != nil {
		t.Fatalf("catalog.NewStore() error = %v", err)
	}

	vault, err := secrets.NewAESVault("registry-test")
	if err != nil {
		t.Fatalf("NewAESVault() error = %v", err)
	}

	constructions := 0
	adapterReg := adapters.NewRegistry()
	adapterReg.Register("mock", func(adapters.Config) (adapters.Adapter, error) {
		constructions++
		return relaytest.NewMockAdapter("mock"), nil
	})

	reg := New(store, cat, vault, adapterReg, &Config{
		ProbeTimeout:    time.Second,
		UpstreamTimeout: time.Second,
	})
	ctx := context.Background()

	ch, err := reg.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Sweep probes must reuse one pooled adapter rather than building
	// a fresh transport per tick.
	base := constructions
	for i := 0; i < 3; i++ {
		result, err := reg.Probe(ctx, ch.ID)
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if !result.OK {
			t.Fatalf("Probe() result = %+v, want ok", result)
		}
	}
	if got := constructions - base; got != 1 {
		t.Errorf("adapters built across 3 probes = %d, want 1", got)
	}
}
