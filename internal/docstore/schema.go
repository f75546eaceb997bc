package docstore

const schemaSQL = `
CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	post_slug  TEXT NOT NULL,
	author     TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	parent_id  TEXT NOT NULL DEFAULT '',
	approved   INTEGER NOT NULL DEFAULT 0,
	is_admin   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_slug, created_at);
CREATE INDEX IF NOT EXISTS idx_comments_approved ON comments(approved);

CREATE TABLE IF NOT EXISTS subscribers (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	email_key     TEXT NOT NULL UNIQUE,
	post_slug     TEXT NOT NULL DEFAULT '',
	subscribed_at DATETIME NOT NULL
);
`
