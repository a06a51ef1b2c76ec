package store

// Migrations are applied in order, once, at startup. Each entry is
// recorded in schema_migrations so re-running Migrate is a no-op for
// already-applied steps.

type migration struct {
	ID  string
	SQL string
}

var postgresMigrations = []migration{
	{
		ID: "0001_ingestion",
		SQL: `
CREATE TABLE IF NOT EXISTS ingestion (
	id                TEXT PRIMARY KEY,
	set_key           TEXT NOT NULL DEFAULT '',
	original_filename TEXT NOT NULL,
	file_type         TEXT NOT NULL,
	size_bytes        BIGINT NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'pending',
	document_type     TEXT,
	extracted_text    TEXT,
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 0,
	extracted_data    JSONB,
	processing_steps  JSONB NOT NULL DEFAULT '[]',
	error_message     TEXT,
	created_date      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_date      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completion_date   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_ingestion_status ON ingestion(status);
CREATE INDEX IF NOT EXISTS idx_ingestion_set_key ON ingestion(set_key);
`,
	},
	{
		ID: "0002_artifacts",
		SQL: `
CREATE TABLE IF NOT EXISTS ingestion_pdf (
	ingestion_id     TEXT NOT NULL REFERENCES ingestion(id) ON DELETE CASCADE,
	form_id          TEXT NOT NULL,
	file_path        TEXT,
	document_type    TEXT,
	page_range       TEXT,
	forms_detected   INTEGER NOT NULL DEFAULT 1,
	classification   TEXT,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_date     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ingestion_id, form_id)
);
CREATE TABLE IF NOT EXISTS ingestion_txt (
	ingestion_id    TEXT NOT NULL REFERENCES ingestion(id) ON DELETE CASCADE,
	form_id         TEXT NOT NULL,
	content         TEXT NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	language        TEXT NOT NULL DEFAULT 'en',
	character_count INTEGER NOT NULL DEFAULT 0,
	word_count      INTEGER NOT NULL DEFAULT 0,
	created_date    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ingestion_id, form_id)
);
`,
	},
	{
		ID: "0003_fields",
		SQL: `
CREATE TABLE IF NOT EXISTS ingestion_fields (
	ingestion_id      TEXT NOT NULL REFERENCES ingestion(id) ON DELETE CASCADE,
	form_id           TEXT NOT NULL,
	field_name        TEXT NOT NULL,
	field_value       TEXT NOT NULL DEFAULT '',
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 0,
	extraction_method TEXT NOT NULL DEFAULT 'pattern',
	created_date      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ingestion_id, form_id, field_name)
);
`,
	},
	{
		ID: "0004_document_sets",
		SQL: `
CREATE TABLE IF NOT EXISTS document_sets (
	id             TEXT PRIMARY KEY,
	set_key        TEXT NOT NULL UNIQUE,
	expected_types JSONB NOT NULL DEFAULT '[]',
	status         TEXT NOT NULL DEFAULT 'pending',
	evaluated_at   TIMESTAMPTZ,
	created_date   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_date   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS document_set_members (
	set_id       TEXT NOT NULL REFERENCES document_sets(id) ON DELETE CASCADE,
	ingestion_id TEXT NOT NULL REFERENCES ingestion(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	PRIMARY KEY (set_id, ingestion_id)
);
`,
	},
	{
		ID: "0005_discrepancies",
		SQL: `
CREATE TABLE IF NOT EXISTS discrepancies (
	id                 TEXT PRIMARY KEY,
	document_set_id    TEXT NOT NULL REFERENCES document_sets(id) ON DELETE CASCADE,
	discrepancy_type   TEXT NOT NULL,
	severity           TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	field_name         TEXT NOT NULL DEFAULT '',
	expected_value     TEXT NOT NULL DEFAULT '',
	actual_value       TEXT NOT NULL DEFAULT '',
	ucp_rule_reference TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'open',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at        TIMESTAMPTZ,
	resolution_notes   TEXT
);
CREATE INDEX IF NOT EXISTS idx_discrepancies_set ON discrepancies(document_set_id, status);
`,
	},
}

var sqliteMigrations = []migration{
	{
		ID: "0001_ingestion",
		SQL: `
CREATE TABLE IF NOT EXISTS ingestion (
	id                TEXT PRIMARY KEY,
	set_key           TEXT NOT NULL DEFAULT '',
	original_filename TEXT NOT NULL,
	file_type         TEXT NOT NULL,
	size_bytes        INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'pending',
	document_type     TEXT,
	extracted_text    TEXT,
	confidence        REAL NOT NULL DEFAULT 0,
	extracted_data    TEXT,
	processing_steps  TEXT NOT NULL DEFAULT '[]',
	error_message     TEXT,
	created_date      DATETIME NOT NULL,
	updated_date      DATETIME NOT NULL,
	completion_date   DATETIME
);
CREATE INDEX IF NOT EXISTS idx_ingestion_status ON ingestion(status);
CREATE INDEX IF NOT EXISTS idx_ingestion_set_key ON ingestion(set_key);
`,
	},
	{
		ID: "0002_artifacts",
		SQL: `
CREATE TABLE IF NOT EXISTS ingestion_pdf (
	ingestion_id     TEXT NOT NULL REFERENCES ingestion(id) ON DELETE CASCADE,
	form_id          TEXT NOT NULL,
	file_path        TEXT,
	document_type    TEXT,
	page_range       TEXT,
	forms_detected   INTEGER NOT NULL DEFAULT 1,
	classification   TEXT,
	confidence_score REAL NOT NULL DEFAULT 0,
	created_date     DATETIME NOT NULL,
	PRIMARY KEY (ingestion_id, form_id)
);
CREATE TABLE IF NOT EXISTS ingestion_txt (
	ingestion_id    TEXT NOT NULL REFERENCES ingestion(id) ON DELETE CASCADE,
	form_id         TEXT NOT NULL,
	content         TEXT NOT NULL,
	confidence      REAL NOT NULL DEFAULT 0,
	language        TEXT NOT NULL DEFAULT 'en',
	character_count INTEGER NOT NULL DEFAULT 0,
	word_count      INTEGER NOT NULL DEFAULT 0,
	created_date    DATETIME NOT NULL,
	PRIMARY KEY (ingestion_id, form_id)
);
`,
	},
	{
		ID: "0003_fields",
		SQL: `
CREATE TABLE IF NOT EXISTS ingestion_fields (
	ingestion_id      TEXT NOT NULL REFERENCES ingestion(id) ON DELETE CASCADE,
	form_id           TEXT NOT NULL,
	field_name        TEXT NOT NULL,
	field_value       TEXT NOT NULL DEFAULT '',
	confidence        REAL NOT NULL DEFAULT 0,
	extraction_method TEXT NOT NULL DEFAULT 'pattern',
	created_date      DATETIME NOT NULL,
	PRIMARY KEY (ingestion_id, form_id, field_name)
);
`,
	},
	{
		ID: "0004_document_sets",
		SQL: `
CREATE TABLE IF NOT EXISTS document_sets (
	id             TEXT PRIMARY KEY,
	set_key        TEXT NOT NULL UNIQUE,
	expected_types TEXT NOT NULL DEFAULT '[]',
	status         TEXT NOT NULL DEFAULT 'pending',
	evaluated_at   DATETIME,
	created_date   DATETIME NOT NULL,
	updated_date   DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS document_set_members (
	set_id       TEXT NOT NULL REFERENCES document_sets(id) ON DELETE CASCADE,
	ingestion_id TEXT NOT NULL REFERENCES ingestion(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	PRIMARY KEY (set_id, ingestion_id)
);
`,
	},
	{
		ID: "0005_discrepancies",
		SQL: `
CREATE TABLE IF NOT EXISTS discrepancies (
	id                 TEXT PRIMARY KEY,
	document_set_id    TEXT NOT NULL REFERENCES document_sets(id) ON DELETE CASCADE,
	discrepancy_type   TEXT NOT NULL,
	severity           TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	field_name         TEXT NOT NULL DEFAULT '',
	expected_value     TEXT NOT NULL DEFAULT '',
	actual_value       TEXT NOT NULL DEFAULT '',
	ucp_rule_reference TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'open',
	created_at         DATETIME NOT NULL,
	resolved_at        DATETIME,
	resolution_notes   TEXT
);
CREATE INDEX IF NOT EXISTS idx_discrepancies_set ON discrepancies(document_set_id, status);
`,
	},
}
