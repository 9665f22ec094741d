package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	interrupted BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sources (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	position  INTEGER NOT NULL,
	source_id TEXT NOT NULL,
	pages     INTEGER NOT NULL,
	records   INTEGER NOT NULL,
	dropped   INTEGER NOT NULL,
	stop      TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS quotes (
	run_id TEXT NOT NULL REFERENCES runs(id),
	serial INTEGER NOT NULL,
	quote  TEXT NOT NULL,
	link   TEXT NOT NULL,
	author TEXT NOT NULL,
	PRIMARY KEY (run_id, serial)
);
`
