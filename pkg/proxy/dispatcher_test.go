package proxy

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"conduit-hq/conduit/internal/relaytest"
	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/catalog"
	"conduit-hq/conduit/pkg/health"
	"conduit-hq/conduit/pkg/limits/ratelimit"
	"conduit-hq/conduit/pkg/registry"
	"conduit-hq/conduit/pkg/relay"
	"conduit-hq/conduit/pkg/routing"
	"conduit-hq/conduit/pkg/secrets"
	"conduit-hq/conduit/pkg/usage"
)

// recordingSink captures usage records synchronously.
type recordingSink struct {
	mu      sync.Mutex
	records []*usage.Record
}

func (s *recordingSink) Report(_ context.Context, rec *usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) all() []*usage.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*usage.Record(nil), s.records...)
}

// dispatchHarness wires a dispatcher against an in-memory registry
// whose channels resolve to per-channel scripted adapters. Channels
// registered before their scripted adapter is assigned probe through a
// throwaway mock that always succeeds.
type dispatchHarness struct {
	dispatcher *Dispatcher
	registry   *registry.Registry
	book       *health.Book
	sink       *recordingSink

	mu       sync.Mutex
	adapters map[string]*relaytest.MockAdapter
	broken   map[string]bool
}

// breakChannel makes adapter construction fail for the channel, as a
// vault or wiring fault would.
func (h *dispatchHarness) breakChannel(id string) {
	h.mu.Lock()
	h.broken[id] = true
	h.mu.Unlock()
}

func newDispatchHarness(t *testing.T, maxFailovers int) *dispatchHarness {
	t.Helper()

	h := &dispatchHarness{
		adapters: map[string]*relaytest.MockAdapter{},
		broken:   map[string]bool{},
		sink:     &recordingSink{},
	}

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
				{Status: 401, Kind: relay.KindAuthentication},
				{Status: 429, Kind: relay.KindRateLimit},
				{Status: 500, Kind: relay.KindServerError},
			},
		},
	})
	if err != nil {
		t.Fatalf("catalog.NewStore() error = %v", err)
	}

	vault, err := secrets.NewAESVault("dispatch-test")
	if err != nil {
		t.Fatalf("NewAESVault() error = %v", err)
	}

	adapterReg := adapters.NewRegistry()
	adapterReg.Register("mock", func(cfg adapters.Config) (adapters.Adapter, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.broken[cfg.ChannelID] {
			return nil, errors.New("credential vault unavailable")
		}
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
	h.dispatcher = NewDispatcher(
		sel, h.registry, cat, h.book, ratelimit.NewChannelLimiter(),
		h.sink, nil, nil,
		&DispatcherConfig{MaxFailovers: maxFailovers},
	)
	return h
}

// addChannel registers a channel and binds the scripted adapter to it.
// A zero weight is applied after registration so the channel stays out
// of primary selection but remains a failover backup.
func (h *dispatchHarness) addChannel(t *testing.T, name string, priority, weight, maxRPM int, mock *relaytest.MockAdapter) *registry.Channel {
	t.Helper()
	ctx := context.Background()

	ch, err := h.registry.Register(ctx, &registry.RegisterInput{
		TenantID:     "tenant-a",
		DescriptorID: "mock",
		Name:         name,
		Priority:     priority,
		Weight:       weight,
		MaxRPM:       maxRPM,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", name, err)
	}
	if weight == 0 {
		zero := 0
		if _, err := h.registry.Update(ctx, ch.ID, &registry.UpdateInput{Weight: &zero}); err != nil {
			t.Fatalf("Update(%s) error = %v", name, err)
		}
	}

	h.mu.Lock()
	h.adapters[ch.ID] = mock
	h.mu.Unlock()
	return ch
}

func textRequest(model string) *relay.Request {
	return &relay.Request{
		Model:    model,
		Messages: []relay.Message{{Role: relay.RoleUser, Content: "hello"}},
	}
}

func serverError(body string) *adapters.UpstreamError {
	return &adapters.UpstreamError{Provider: "mock", Status: 500, Body: body}
}

func TestDispatchSuccess(t *testing.T) {
	h := newDispatchHarness(t, DefaultMaxFailovers)
	mock := relaytest.NewMockAdapter("mock").Script(relaytest.Outcome{
		Resp: relaytest.TextResponse("mock-large", "hello back"),
	})
	ch := h.addChannel(t, "primary", 0, 100, 0, mock)

	resp, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", textRequest("mock-large"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp.Content != "hello back" {
		t.Errorf("Content = %q", resp.Content)
	}

	m := h.book.Get(ch.ID)
	if m.RequestCount != 1 || m.ErrorCount != 0 {
		t.Errorf("metrics = %d requests / %d errors, want 1/0", m.RequestCount, m.ErrorCount)
	}

	recs := h.sink.all()
	if len(recs) != 1 {
		t.Fatalf("usage records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.TenantID != "tenant-a" || rec.ChannelID != ch.ID || rec.Model != "mock-large" {
		t.Errorf("usage record = %+v", rec)
	}
	if rec.Estimated || rec.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v estimated=%v, want reported 15 tokens", rec.Usage, rec.Estimated)
	}
}

func TestDispatchFailoverToBackup(t *testing.T) {
	h := newDispatchHarness(t, DefaultMaxFailovers)
	primaryMock := relaytest.NewMockAdapter("mock").Script(relaytest.Outcome{
		Err: serverError("upstream exploded"),
	})
	backupMock := relaytest.NewMockAdapter("mock").Script(relaytest.Outcome{
		Resp: relaytest.TextResponse("mock-large", "from backup"),
	})
	primary := h.addChannel(t, "primary", 10, 100, 0, primaryMock)
	backup := h.addChannel(t, "backup", 5, 0, 0, backupMock)

	resp, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", textRequest("mock-large"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("Content = %q, want from backup", resp.Content)
	}
	if primaryMock.CompleteCalls != 1 || backupMock.CompleteCalls != 1 {
		t.Errorf("calls = %d primary / %d backup, want 1/1",
			primaryMock.CompleteCalls, backupMock.CompleteCalls)
	}

	if m := h.book.Get(primary.ID); m.ErrorCount != 1 {
		t.Errorf("primary ErrorCount = %d, want 1", m.ErrorCount)
	}
	if m := h.book.Get(backup.ID); m.RequestCount != 1 || m.ErrorCount != 0 {
		t.Errorf("backup metrics = %+v, want one success", m)
	}
}

func TestDispatchNonRetryableSurfacesImmediately(t *testing.T) {
	h := newDispatchHarness(t, DefaultMaxFailovers)
	primaryMock := relaytest.NewMockAdapter("mock").Script(relaytest.Outcome{
		Err: &adapters.UpstreamError{Provider: "mock", Status: 401, Body: "bad key"},
	})
	backupMock := relaytest.NewMockAdapter("mock")
	h.addChannel(t, "primary", 10, 100, 0, primaryMock)
	h.addChannel(t, "backup", 5, 0, 0, backupMock)

	_, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", textRequest("mock-large"))

	var unified *relay.Error
	if !errors.As(err, &unified) {
		t.Fatalf("error = %v, want *relay.Error", err)
	}
	if unified.Kind != relay.KindAuthentication {
		t.Errorf("Kind = %q, want authentication", unified.Kind)
	}
	if backupMock.CompleteCalls != 0 {
		t.Errorf("backup CompleteCalls = %d, want 0", backupMock.CompleteCalls)
	}
}

func TestDispatchFailoverBudgetExhausted(t *testing.T) {
	h := newDispatchHarness(t, 1)
	mocks := make([]*relaytest.MockAdapter, 3)
	for i, name := range []string{"primary", "backup-1", "backup-2"} {
		mocks[i] = relaytest.NewMockAdapter("mock").Script(relaytest.Outcome{
			Err: serverError("still broken"),
		})
		weight := 0
		if i == 0 {
			weight = 100
		}
		h.addChannel(t, name, 10-i, weight, 0, mocks[i])
	}

	_, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", textRequest("mock-large"))

	var unified *relay.Error
	if !errors.As(err, &unified) {
		t.Fatalf("error = %v, want *relay.Error", err)
	}
	if unified.Kind != relay.KindServerError {
		t.Errorf("Kind = %q, want server_error", unified.Kind)
	}

	total := mocks[0].CompleteCalls + mocks[1].CompleteCalls + mocks[2].CompleteCalls
	if total != 2 {
		t.Errorf("total attempts = %d, want 2 (primary + 1 failover)", total)
	}
}

func TestDispatchRateCap(t *testing.T) {
	h := newDispatchHarness(t, DefaultMaxFailovers)
	mock := relaytest.NewMockAdapter("mock").Script(relaytest.Outcome{
		Resp: relaytest.TextResponse("mock-large", "ok"),
	})
	ch := h.addChannel(t, "capped", 0, 100, 1, mock)

	if _, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", textRequest("mock-large")); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}

	_, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", textRequest("mock-large"))
	var unified *relay.Error
	if !errors.As(err, &unified) {
		t.Fatalf("second Dispatch() error = %v, want *relay.Error", err)
	}
	if unified.Kind != relay.KindRateLimit {
		t.Errorf("Kind = %q, want rate_limit", unified.Kind)
	}

	// The capped attempt never reached the upstream and must not count
	// against the channel's health.
	if m := h.book.Get(ch.ID); m.RequestCount != 1 {
		t.Errorf("RequestCount = %d, want 1", m.RequestCount)
	}
	if mock.CompleteCalls != 1 {
		t.Errorf("CompleteCalls = %d, want 1", mock.CompleteCalls)
	}
}

func TestDispatchNoChannel(t *testing.T) {
	h := newDispatchHarness(t, DefaultMaxFailovers)

	_, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", textRequest("mock-large"))
	if !errors.Is(err, routing.ErrNoChannel) {
		t.Fatalf("Dispatch() error = %v, want ErrNoChannel", err)
	}
	if len(h.sink.all()) != 0 {
		t.Error("usage reported for failed dispatch")
	}
}

func TestDispatchRequestIDFromMetadata(t *testing.T) {
	h := newDispatchHarness(t, DefaultMaxFailovers)
	mock := relaytest.NewMockAdapter("mock")
	h.addChannel(t, "primary", 0, 100, 0, mock)

	req := textRequest("mock-large")
	req.Metadata = map[string]string{"request_id": "req-12345"}

	if _, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", req); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	recs := h.sink.all()
	if len(recs) != 1 || recs[0].RequestID != "req-12345" {
		t.Errorf("usage records = %+v, want one with request id req-12345", recs)
	}
}

func TestDispatchAdapterFaultLeavesHealthAlone(t *testing.T) {
	h := newDispatchHarness(t, 2)
	ch := h.addChannel(t, "primary", 10, 100, 0, relaytest.NewMockAdapter("mock"))
	h.breakChannel(ch.ID)

	_, err := h.dispatcher.Dispatch(context.Background(), "tenant-a", textRequest("mock-large"))
	if err == nil {
		t.Fatal("Dispatch() with an unbuildable adapter succeeded, want error")
	}

	// The upstream was never contacted, so channel health must not move.
	if m := h.book.Get(ch.ID); m.RequestCount != 0 || m.ErrorCount != 0 {
		t.Errorf("book = %d requests / %d errors, want untouched", m.RequestCount, m.ErrorCount)
	}
}
