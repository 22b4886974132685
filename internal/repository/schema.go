package repository

import (
	"github.com/jmoiron/sqlx"
)

// schemaStatements bootstraps the intake tables for development and test
// profiles (sqlite). Production schemas are provisioned externally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS queues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		email_address TEXT NOT NULL DEFAULT '',
		allow_public_submission BOOLEAN NOT NULL DEFAULT 0,
		new_ticket_cc TEXT NOT NULL DEFAULT '',
		updated_ticket_cc TEXT NOT NULL DEFAULT '',
		create_time TIMESTAMP NOT NULL,
		change_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue_id INTEGER NOT NULL REFERENCES queues(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		submitter_email TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 3,
		status TEXT NOT NULL DEFAULT 'open',
		create_time TIMESTAMP NOT NULL,
		change_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS follow_ups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL REFERENCES tickets(id),
		message_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		create_time TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_follow_ups_message_id ON follow_ups(message_id)`,
	`CREATE TABLE IF NOT EXISTS ticket_ccs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL REFERENCES tickets(id),
		email TEXT NOT NULL,
		can_view BOOLEAN NOT NULL DEFAULT 1,
		UNIQUE (ticket_id, email)
	)`,
	`CREATE TABLE IF NOT EXISTS custom_fields (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue_id INTEGER,
		name TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL DEFAULT '',
		data_type TEXT NOT NULL DEFAULT 'text',
		max_length INTEGER NOT NULL DEFAULT 0,
		ordering INTEGER NOT NULL DEFAULT 0,
		required BOOLEAN NOT NULL DEFAULT 0,
		staff_only BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS custom_field_values (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL REFERENCES tickets(id),
		field_name TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT ''
	)`,
}

// EnsureSchema creates the intake tables when they do not exist yet.
func EnsureSchema(db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
