package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/catalog"
	"conduit-hq/conduit/pkg/relay"
	"conduit-hq/conduit/pkg/secrets"
)

// Config contains configuration for the channel registry.
type Config struct {
	// ProbeTimeout bounds the live probe performed at registration and
	// by the ad-hoc test endpoint. Default: 10 seconds.
	ProbeTimeout time.Duration

	// UpstreamTimeout is the per-attempt timeout handed to adapters.
	// Default: 60 seconds.
	UpstreamTimeout time.Duration
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() *Config {
	return &Config{
		ProbeTimeout:    10 * time.Second,
		UpstreamTimeout: 60 * time.Second,
	}
}

// Registry is the channel lifecycle service. Mutations on one channel
// are serialized by a per-channel mutex; reads go straight to the store.
type Registry struct {
	store    *Store
	catalog  *catalog.Store
	vault    secrets.Vault
	adapters *adapters.Registry
	config   *Config
	logger   *slog.Logger

	mu       sync.Mutex
	chanLock map[string]*sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string]adapters.Adapter
}

// New creates the channel registry.
func New(store *Store, cat *catalog.Store, vault secrets.Vault, reg *adapters.Registry, config *Config) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	return &Registry{
		store:    store,
		catalog:  cat,
		vault:    vault,
		adapters: reg,
		config:   config,
		logger:   slog.Default().With("component", "registry"),
		chanLock: make(map[string]*sync.Mutex),
		cache:    make(map[string]adapters.Adapter),
	}
}

func (r *Registry) lockFor(channelID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.chanLock[channelID]
	if !ok {
		l = &sync.Mutex{}
		r.chanLock[channelID] = l
	}
	return l
}

// RegisterInput carries the fields of a registration request.
// Credentials arrive in plaintext and are sealed before persistence.
type RegisterInput struct {
	TenantID     string
	DescriptorID string
	Name         string
	Credentials  map[string]string
	BaseURL      string
	Models       []string
	Priority     int
	Weight       int
	MaxRPM       int

	// SkipProbe registers the channel in testing status without a live
	// probe. Used for pre-staging credentials.
	SkipProbe bool
}

// Register validates the input against the provider descriptor, probes
// the upstream with the supplied credentials, and persists the channel.
// A failed probe rejects the registration.
func (r *Registry) Register(ctx context.Context, in *RegisterInput) (*Channel, error) {
	desc, ok := r.catalog.Get(in.DescriptorID)
	if !ok {
		return nil, &ValidationError{Field: "descriptor_id", Reason: fmt.Sprintf("unknown provider %q", in.DescriptorID)}
	}
	if !r.adapters.Supports(in.DescriptorID) {
		return nil, &ValidationError{Field: "descriptor_id", Reason: fmt.Sprintf("no adapter for provider %q", in.DescriptorID)}
	}
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.TenantID == "" {
		return nil, &ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if in.Weight < 0 {
		return nil, &ValidationError{Field: "weight", Reason: "must not be negative"}
	}

	if err := desc.ValidateCredentials(in.Credentials); err != nil {
		return nil, &ValidationError{Field: "credentials", Reason: err.Error()}
	}
	for _, model := range in.Models {
		if !desc.SupportsModel(model) {
			return nil, &ValidationError{Field: "models", Reason: fmt.Sprintf("provider %q does not serve %q", in.DescriptorID, model)}
		}
	}

	sealed, err := r.sealCredentials(in.Credentials)
	if err != nil {
		return nil, err
	}

	weight := in.Weight
	if weight == 0 {
		weight = 100
	}

	now := time.Now().UTC()
	ch := &Channel{
		ID:                   uuid.NewString(),
		TenantID:             in.TenantID,
		DescriptorID:         in.DescriptorID,
		Name:                 in.Name,
		EncryptedCredentials: sealed,
		BaseURL:              in.BaseURL,
		Models:               in.Models,
		Status:               StatusActive,
		Priority:             in.Priority,
		Weight:               weight,
		MaxRPM:               in.MaxRPM,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if in.SkipProbe {
		ch.Status = StatusTesting
	} else {
		result := r.probe(ctx, ch)
		r.recordEvent(ctx, ch.ID, EventProbe, result)
		if !result.OK {
			return nil, &ValidationError{Field: "credentials", Reason: fmt.Sprintf("probe failed: %s", result.Message)}
		}
	}

	if err := r.store.Insert(ctx, ch); err != nil {
		return nil, err
	}

	r.logger.Info("channel registered",
		"channel", ch.ID,
		"tenant", ch.TenantID,
		"provider", ch.DescriptorID,
		"status", ch.Status,
	)
	return ch, nil
}

// UpdateInput carries the mutable fields of an update request. Nil
// pointers leave the corresponding field untouched.
type UpdateInput struct {
	Name        *string
	Credentials map[string]string
	BaseURL     *string
	Models      []string
	Status      *Status
	Priority    *int
	Weight      *int
	MaxRPM      *int
}

// Update applies the changed fields to a channel. Credential changes
// are re-validated against the descriptor and re-sealed.
func (r *Registry) Update(ctx context.Context, id string, in *UpdateInput) (*Channel, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	ch, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	desc, ok := r.catalog.Get(ch.DescriptorID)
	if !ok {
		return nil, &ValidationError{Field: "descriptor_id", Reason: fmt.Sprintf("unknown provider %q", ch.DescriptorID)}
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
		}
		ch.Name = *in.Name
	}
	if in.Credentials != nil {
		if err := desc.ValidateCredentials(in.Credentials); err != nil {
			return nil, &ValidationError{Field: "credentials", Reason: err.Error()}
		}
		sealed, err := r.sealCredentials(in.Credentials)
		if err != nil {
			return nil, err
		}
		ch.EncryptedCredentials = sealed
	}
	if in.BaseURL != nil {
		ch.BaseURL = *in.BaseURL
	}
	if in.Models != nil {
		for _, model := range in.Models {
			if !desc.SupportsModel(model) {
				return nil, &ValidationError{Field: "models", Reason: fmt.Sprintf("provider %q does not serve %q", ch.DescriptorID, model)}
			}
		}
		ch.Models = in.Models
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *in.Status)}
		}
		ch.Status = *in.Status
	}
	if in.Priority != nil {
		ch.Priority = *in.Priority
	}
	if in.Weight != nil {
		if *in.Weight < 0 {
			return nil, &ValidationError{Field: "weight", Reason: "must not be negative"}
		}
		ch.Weight = *in.Weight
	}
	if in.MaxRPM != nil {
		ch.MaxRPM = *in.MaxRPM
	}
	ch.UpdatedAt = time.Now().UTC()

	if err := r.store.Update(ctx, ch); err != nil {
		return nil, err
	}
	r.invalidateAdapter(id)

	r.logger.Info("channel updated", "channel", ch.ID, "status", ch.Status)
	return ch, nil
}

// Deactivate soft-removes a channel from routing.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	status := StatusInactive
	_, err := r.Update(ctx, id, &UpdateInput{Status: &status})
	return err
}

// Get retrieves one channel.
func (r *Registry) Get(ctx context.Context, id string) (*Channel, error) {
	return r.store.Get(ctx, id)
}

// List returns a tenant's channels in registration order.
func (r *Registry) List(ctx context.Context, tenantID string) ([]*Channel, error) {
	return r.store.List(ctx, tenantID)
}

// ListForModel returns the tenant's active channels able to serve the
// model, in registration order. A channel with its own model list must
// name the model; otherwise the provider descriptor decides.
func (r *Registry) ListForModel(ctx context.Context, model, tenantID string) ([]*Channel, error) {
	all, err := r.store.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	candidates := []*Channel{}
	for _, ch := range all {
		if ch.Status != StatusActive {
			continue
		}
		if !ch.SupportsModel(model) {
			continue
		}
		if len(ch.Models) == 0 {
			desc, ok := r.catalog.Get(ch.DescriptorID)
			if !ok || !desc.SupportsModel(model) {
				continue
			}
		}
		candidates = append(candidates, ch)
	}
	return candidates, nil
}

// ListActive returns all active channels across tenants, for the health
// monitor's probe sweep.
func (r *Registry) ListActive(ctx context.Context) ([]*Channel, error) {
	return r.store.ListByStatus(ctx, StatusActive)
}

// AdapterFor returns a ready adapter for the channel, building and
// caching it on first use. The cache is invalidated on update.
func (r *Registry) AdapterFor(ctx context.Context, ch *Channel) (adapters.Adapter, error) {
	r.cacheMu.RLock()
	a, ok := r.cache[ch.ID]
	r.cacheMu.RUnlock()
	if ok {
		return a, nil
	}

	a, err := r.buildAdapter(ch)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[ch.ID]; ok {
		a = cached
	} else {
		r.cache[ch.ID] = a
	}
	r.cacheMu.Unlock()
	return a, nil
}

func (r *Registry) buildAdapter(ch *Channel) (adapters.Adapter, error) {
	creds, err := r.openCredentials(ch)
	if err != nil {
		return nil, err
	}

	baseURL := ch.BaseURL
	if baseURL == "" {
		if desc, ok := r.catalog.Get(ch.DescriptorID); ok {
			baseURL = desc.DefaultBaseURL
		}
	}

	return r.adapters.New(adapters.Config{
		DescriptorID: ch.DescriptorID,
		ChannelID:    ch.ID,
		BaseURL:      baseURL,
		Credentials:  creds,
		Timeout:      r.config.UpstreamTimeout,
	})
}

func (r *Registry) invalidateAdapter(channelID string) {
	r.cacheMu.Lock()
	delete(r.cache, channelID)
	r.cacheMu.Unlock()
}

// Probe runs one live credential check against the channel's upstream
// and records the outcome in the channel history. It goes through the
// dispatch adapter cache: sweep probes run every schedule tick, and a
// fresh transport per probe would churn connection pools.
func (r *Registry) Probe(ctx context.Context, id string) (*relay.ProbeResult, error) {
	ch, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var result *relay.ProbeResult
	adapter, err := r.AdapterFor(ctx, ch)
	if err != nil {
		result = &relay.ProbeResult{OK: false, Message: err.Error()}
	} else {
		result = r.probeAdapter(ctx, adapter)
	}
	r.recordEvent(ctx, ch.ID, EventProbe, result)
	return result, nil
}

// probe makes a one-shot probe with a throwaway adapter, for channels
// that are not (or not yet) registered.
func (r *Registry) probe(ctx context.Context, ch *Channel) *relay.ProbeResult {
	adapter, err := r.buildAdapter(ch)
	if err != nil {
		return &relay.ProbeResult{OK: false, Message: err.Error()}
	}
	return r.probeAdapter(ctx, adapter)
}

func (r *Registry) probeAdapter(ctx context.Context, adapter adapters.Adapter) *relay.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, r.config.ProbeTimeout)
	defer cancel()

	started := time.Now()
	err := adapter.Probe(ctx)
	latency := time.Since(started)
	if err != nil {
		return &relay.ProbeResult{OK: false, Latency: latency, Message: err.Error()}
	}
	return &relay.ProbeResult{OK: true, Latency: latency}
}

// TestConnection probes an unregistered channel configuration: the
// credentials are validated and tried against the upstream, and nothing
// is persisted.
func (r *Registry) TestConnection(ctx context.Context, in *RegisterInput) (*relay.ProbeResult, error) {
	desc, ok := r.catalog.Get(in.DescriptorID)
	if !ok {
		return nil, &ValidationError{Field: "descriptor_id", Reason: fmt.Sprintf("unknown provider %q", in.DescriptorID)}
	}
	if err := desc.ValidateCredentials(in.Credentials); err != nil {
		return nil, &ValidationError{Field: "credentials", Reason: err.Error()}
	}

	sealed, err := r.sealCredentials(in.Credentials)
	if err != nil {
		return nil, err
	}

	probe := &Channel{
		ID:                   "adhoc",
		DescriptorID:         in.DescriptorID,
		BaseURL:              in.BaseURL,
		EncryptedCredentials: sealed,
	}
	return r.probe(ctx, probe), nil
}

// RecordDispatch appends one dispatch outcome to the channel history.
func (r *Registry) RecordDispatch(ctx context.Context, channelID string, ok bool, kind relay.ErrorKind, latency time.Duration, message string) {
	ev := &Event{
		ChannelID: channelID,
		Kind:      EventDispatch,
		OK:        ok,
		ErrorKind: string(kind),
		Latency:   latency,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.AppendEvent(ctx, ev); err != nil {
		r.logger.Warn("record dispatch event failed", "channel", channelID, "error", err)
	}
}

// RecentEvents returns a channel's newest history entries.
func (r *Registry) RecentEvents(ctx context.Context, channelID string, limit int) ([]*Event, error) {
	return r.store.RecentEvents(ctx, channelID, limit)
}

func (r *Registry) recordEvent(ctx context.Context, channelID, kind string, result *relay.ProbeResult) {
	ev := &Event{
		ChannelID: channelID,
		Kind:      kind,
		OK:        result.OK,
		Latency:   result.Latency,
		Message:   result.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.AppendEvent(ctx, ev); err != nil {
		r.logger.Warn("record probe event failed", "channel", channelID, "error", err)
	}
}

func (r *Registry) sealCredentials(creds map[string]string) ([]byte, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}
	sealed, err := r.vault.Seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal credentials: %w", err)
	}
	return sealed, nil
}

func (r *Registry) openCredentials(ch *Channel) (map[string]string, error) {
	plaintext, err := r.vault.Open(ch.EncryptedCredentials)
	if err != nil {
		return nil, fmt.Errorf("open credentials for channel %s: %w", ch.ID, err)
	}
	creds := map[string]string{}
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials for channel %s: %w", ch.ID, err)
	}
	return creds, nil
}
