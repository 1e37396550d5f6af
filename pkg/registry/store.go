package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// StoreConfig contains configuration for the SQLite channel store.
type StoreConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Path:         "data/channels.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Store persists channels and their event history in SQLite.
type Store struct {
	db     *sql.DB
	config *StoreConfig
	logger *slog.Logger
}

// NewStore opens the channel database, creating the schema if needed.
func NewStore(config *StoreConfig) (*Store, error) {
	if config == nil {
		config = DefaultStoreConfig()
	}

	logger := slog.Default().With("component", "registry.store")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &Store{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("channel store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *Store) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return &StoreError{Op: "enable_wal", Err: err}
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return &StoreError{Op: "set_busy_timeout", Err: err}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return &StoreError{Op: "create_schema", Err: err}
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return &StoreError{Op: "insert_schema_version", Err: err}
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return &StoreError{Op: "get_schema_version", Err: err}
	}
	if version != SchemaVersion {
		return &StoreError{Op: "schema_version_mismatch",
			Err: fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version)}
	}
	return nil
}

// Insert persists a new channel.
func (s *Store) Insert(ctx context.Context, ch *Channel) error {
	models, err := json.Marshal(ch.Models)
	if err != nil {
		return &StoreError{Op: "insert", Err: fmt.Errorf("marshal models: %w", err)}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO channels (
			id, tenant_id, descriptor_id, name, encrypted_credentials,
			base_url, models, status, priority, weight, max_rpm,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.TenantID, ch.DescriptorID, ch.Name, ch.EncryptedCredentials,
		ch.BaseURL, string(models), string(ch.Status), ch.Priority, ch.Weight, ch.MaxRPM,
		ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		return &StoreError{Op: "insert", Err: err}
	}
	return nil
}

// Update rewrites a channel's mutable fields.
func (s *Store) Update(ctx context.Context, ch *Channel) error {
	models, err := json.Marshal(ch.Models)
	if err != nil {
		return &StoreError{Op: "update", Err: fmt.Errorf("marshal models: %w", err)}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE channels SET
			name = ?, encrypted_credentials = ?, base_url = ?, models = ?,
			status = ?, priority = ?, weight = ?, max_rpm = ?, updated_at = ?
		WHERE id = ?`,
		ch.Name, ch.EncryptedCredentials, ch.BaseURL, string(models),
		string(ch.Status), ch.Priority, ch.Weight, ch.MaxRPM, ch.UpdatedAt,
		ch.ID,
	)
	if err != nil {
		return &StoreError{Op: "update", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves one channel by id.
func (s *Store) Get(ctx context.Context, id string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, selectChannels+` WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return ch, nil
}

// List returns a tenant's channels in registration order.
func (s *Store) List(ctx context.Context, tenantID string) ([]*Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		selectChannels+` WHERE tenant_id = ? ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()
	return scanChannels(rows)
}

// ListByStatus returns all channels in the given status, across tenants,
// in registration order.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		selectChannels+` WHERE status = ? ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, &StoreError{Op: "list_by_status", Err: err}
	}
	defer rows.Close()
	return scanChannels(rows)
}

const selectChannels = `
	SELECT id, tenant_id, descriptor_id, name, encrypted_credentials,
	       base_url, models, status, priority, weight, max_rpm,
	       created_at, updated_at
	FROM channels`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChannel(row rowScanner) (*Channel, error) {
	var ch Channel
	var models, status string
	err := row.Scan(
		&ch.ID, &ch.TenantID, &ch.DescriptorID, &ch.Name, &ch.EncryptedCredentials,
		&ch.BaseURL, &models, &status, &ch.Priority, &ch.Weight, &ch.MaxRPM,
		&ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ch.Status = Status(status)
	if err := json.Unmarshal([]byte(models), &ch.Models); err != nil {
		return nil, fmt.Errorf("unmarshal models: %w", err)
	}
	return &ch, nil
}

func scanChannels(rows *sql.Rows) ([]*Channel, error) {
	channels := []*Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "scan", Err: err}
	}
	return channels, nil
}

// AppendEvent records one probe or dispatch outcome.
func (s *Store) AppendEvent(ctx context.Context, ev *Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_events (channel_id, kind, ok, error_kind, latency_ms, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ChannelID, ev.Kind, ev.OK, ev.ErrorKind, ev.Latency.Milliseconds(), ev.Message, ev.CreatedAt,
	)
	if err != nil {
		return &StoreError{Op: "append_event", Err: err}
	}
	return nil
}

// RecentEvents returns a channel's newest events, newest first.
func (s *Store) RecentEvents(ctx context.Context, channelID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, kind, ok, error_kind, latency_ms, message, created_at
		FROM channel_events WHERE channel_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, channelID, limit)
	if err != nil {
		return nil, &StoreError{Op: "recent_events", Err: err}
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		var ev Event
		var latencyMS int64
		if err := rows.Scan(&ev.ID, &ev.ChannelID, &ev.Kind, &ev.OK, &ev.ErrorKind, &latencyMS, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}
		ev.Latency = time.Duration(latencyMS) * time.Millisecond
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "scan", Err: err}
	}
	return events, nil
}

// PruneEvents deletes events older than the cutoff and returns the
// number removed.
func (s *Store) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_events WHERE created_at < ?`, before)
	if err != nil {
		return 0, &StoreError{Op: "prune_events", Err: err}
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug("pruned channel events", "removed", n, "before", before)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
