package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id                   TEXT PRIMARY KEY CHECK(length(id) > 0),
	container_name       TEXT NOT NULL DEFAULT '',
	container_avatar_url TEXT,
	subject_title        TEXT NOT NULL DEFAULT '',
	subject_type         TEXT NOT NULL DEFAULT 'Unknown',
	subject_url          TEXT,
	reason               TEXT NOT NULL DEFAULT 'unknown',
	unread               INTEGER NOT NULL DEFAULT 1 CHECK(unread IN (0, 1)),
	updated_at           INTEGER NOT NULL,
	last_read_at         INTEGER
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_updated_at ON notifications(updated_at);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(unread);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_reason_updated
	ON notifications(reason, updated_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
