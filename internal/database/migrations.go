package database

// initialSchema creates the snapshot tables. The queue and ledger are
// replaced wholesale on every save, so positions are explicit columns
// rather than rowid ordering.
const initialSchema = `
CREATE TABLE IF NOT EXISTS pending_items (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	source_message_id INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_items_position ON pending_items(position);

CREATE TABLE IF NOT EXISTS dedup_ledger (
	fingerprint TEXT PRIMARY KEY,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS display_meta (
	id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	cached_at DATETIME NOT NULL,
	PRIMARY KEY (id, kind)
);
`
