package registry

// SchemaVersion is the current channel store schema version.
const SchemaVersion = 1

// Schema creates the channel tables and indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS channels (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	descriptor_id TEXT NOT NULL,
	name TEXT NOT NULL,
	encrypted_credentials BLOB NOT NULL,
	base_url TEXT NOT NULL DEFAULT '',
	models TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'active',
	priority INTEGER NOT NULL DEFAULT 0,
	weight INTEGER NOT NULL DEFAULT 100,
	max_rpm INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_channels_tenant ON channels(tenant_id);
CREATE INDEX IF NOT EXISTS idx_channels_status ON channels(status);

CREATE TABLE IF NOT EXISTS channel_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	ok INTEGER NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	latency_ms INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_channel_events_channel ON channel_events(channel_id, created_at);
CREATE INDEX IF NOT EXISTS idx_channel_events_created ON channel_events(created_at);
`

// InsertSchemaVersion records the schema version after creation.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads back the schema version.
const GetSchemaVersion = `SELECT version FROM schema_version LIMIT 1`
