package sqlite

import "github.com/steveyegge/crm/internal/storage/migrations"

// schemaMigrations is the versioned SQLite schema. JSON-valued fields are
// stored as TEXT and decoded on read.
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
    tags TEXT NOT NULL DEFAULT '[]',
    fields TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL,
    last_updated DATETIME NOT NULL
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
    messages TEXT NOT NULL DEFAULT '[]',
    notes TEXT NOT NULL DEFAULT '[]',
    check_ins TEXT NOT NULL DEFAULT '[]',
    payment_methods TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_contact_id ON cards(contact_id);

CREATE TABLE IF NOT EXISTS merge_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    contact_id TEXT NOT NULL DEFAULT '',
    group_key TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '{}'
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
