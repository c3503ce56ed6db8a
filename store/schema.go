package store

// Schema creates the documents and ai_cache tables. Timestamps are unix ms.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	path        TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT '',
	size        INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'queued'
	            CHECK (status IN ('queued','processing','done','failed')),
	formats     TEXT NOT NULL DEFAULT '[]',
	prompt      TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	result      TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);

CREATE TABLE IF NOT EXISTS ai_cache (
	key         TEXT PRIMARY KEY,
	value       BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);
`
