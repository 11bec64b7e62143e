package postgres

import "github.com/steveyegge/crm/internal/storage/migrations"

var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "contacts, cards and merge events",
		Up: `
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT PRIMARY KEY,
    phone TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    tags JSONB NOT NULL DEFAULT '[]'::jsonb,
    fields JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL,
    last_updated TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_created_at ON contacts(created_at);
CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL DEFAULT '',
    contact_id TEXT NOT NULL DEFAULT '',
    contact_number TEXT NOT NULL DEFAULT '',
    contact_name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    messages JSONB NOT NULL DEFAULT '[]'::jsonb,
    notes JSONB NOT NULL DEFAULT '[]'::jsonb,
    check_ins JSONB NOT NULL DEFAULT '[]'::jsonb,
    payment_methods JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_contact_id ON cards(contact_id);

CREATE TABLE IF NOT EXISTS merge_events (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL,
    contact_id TEXT NOT NULL DEFAULT '',
    group_key TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    data JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_merge_events_timestamp ON merge_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_merge_events_contact ON merge_events(contact_id);
`,
		Down: `
DROP TABLE IF EXISTS merge_events;
DROP TABLE IF EXISTS cards;
DROP TABLE IF EXISTS contacts;
`,
	},
	{
		Version:     2,
		Description: "index cards by contact number",
		Up:          `CREATE INDEX IF NOT EXISTS idx_cards_contact_number ON cards(contact_number);`,
		Down:        `DROP INDEX IF EXISTS idx_cards_contact_number;`,
	},
}
