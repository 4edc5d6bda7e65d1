package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reply_state (
    peer_id INTEGER PRIMARY KEY,
    business_connection_id TEXT NOT NULL DEFAULT '',
    message_id INTEGER NOT NULL DEFAULT 0,
    sent_at INTEGER NOT NULL DEFAULT 0
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
