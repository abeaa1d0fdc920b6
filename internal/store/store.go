// Package store provides transactional persistence for the catalog/EPG/connection/health
// core, backed by a pure-Go SQLite engine so the binary stays free of cgo.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB with the schema this package owns.
type Store struct {
	DB *sql.DB
}

// Open creates (if needed) and opens the sqlite database at path, applying the schema.
// path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY under concurrent goroutines
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) migrate() error {
	_, err := s.DB.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	server TEXT NOT NULL,
	user_agent TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	legacy_username TEXT NOT NULL DEFAULT '',
	legacy_password TEXT NOT NULL DEFAULT '',
	live_only INTEGER NOT NULL DEFAULT 0,
	last_sync TIMESTAMP,
	last_sync_status TEXT NOT NULL DEFAULT '',
	last_sync_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	username TEXT NOT NULL,
	password TEXT NOT NULL,
	max_connections INTEGER NOT NULL DEFAULT 1,
	active_connections INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	external_category_id TEXT NOT NULL,
	name TEXT NOT NULL,
	stream_type TEXT NOT NULL DEFAULT 'live',
	is_ppv INTEGER NOT NULL DEFAULT 0,
	last_seen TIMESTAMP,
	UNIQUE(account_id, external_category_id, stream_type)
);

CREATE TABLE IF NOT EXISTS channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	category_id INTEGER NOT NULL DEFAULT 0,
	external_stream_id TEXT NOT NULL,
	name TEXT NOT NULL,
	cleaned_name TEXT NOT NULL DEFAULT '',
	epg_channel_id TEXT NOT NULL DEFAULT '',
	stream_type TEXT NOT NULL DEFAULT 'live',
	is_active INTEGER NOT NULL DEFAULT 1,
	is_visible INTEGER NOT NULL DEFAULT 1,
	is_ppv INTEGER NOT NULL DEFAULT 0,
	last_seen TIMESTAMP,
	UNIQUE(account_id, external_stream_id, stream_type)
);
CREATE INDEX IF NOT EXISTS idx_channels_account ON channels(account_id);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS channel_tags (
	channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	source TEXT NOT NULL DEFAULT 'extraction',
	PRIMARY KEY(channel_id, tag_id)
);

CREATE TABLE IF NOT EXISTS rule_sets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tag_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_set_id INTEGER NOT NULL REFERENCES rule_sets(id) ON DELETE CASCADE,
	priority INTEGER NOT NULL DEFAULT 0,
	pattern_kind TEXT NOT NULL,
	pattern TEXT NOT NULL,
	tag_name TEXT NOT NULL,
	source TEXT NOT NULL,
	remove_from_name INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS account_rule_sets (
	account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	rule_set_id INTEGER NOT NULL REFERENCES rule_sets(id) ON DELETE CASCADE,
	priority INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(account_id, rule_set_id)
);

CREATE TABLE IF NOT EXISTS filters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	action TEXT NOT NULL,
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS epg_sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	source_type TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	last_sync TIMESTAMP,
	last_sync_status TEXT NOT NULL DEFAULT '',
	last_sync_message TEXT NOT NULL DEFAULT '',
	channel_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS epg_channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL REFERENCES epg_sources(id) ON DELETE CASCADE,
	channel_id TEXT NOT NULL,
	display_names_json TEXT NOT NULL DEFAULT '[]',
	icon_url TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	program_count INTEGER NOT NULL DEFAULT 0,
	first_program TIMESTAMP,
	last_program TIMESTAMP,
	last_seen TIMESTAMP,
	UNIQUE(source_id, channel_id)
);

CREATE TABLE IF NOT EXISTS channel_epg_mappings (
	channel_id INTEGER PRIMARY KEY REFERENCES channels(id) ON DELETE CASCADE,
	epg_channel_id INTEGER NOT NULL REFERENCES epg_channels(id) ON DELETE CASCADE,
	match_type TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	is_override INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS channel_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	to_channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	time_offset_hours INTEGER NOT NULL DEFAULT 0,
	auto_detected INTEGER NOT NULL DEFAULT 0,
	UNIQUE(from_channel_id, to_channel_id)
);

CREATE TABLE IF NOT EXISTS fcc_facilities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	facility_id TEXT NOT NULL UNIQUE,
	callsign TEXT NOT NULL,
	community_city TEXT NOT NULL DEFAULT '',
	community_state TEXT NOT NULL DEFAULT '',
	network_affiliation TEXT NOT NULL DEFAULT '',
	nielsen_dma TEXT NOT NULL DEFAULT '',
	virtual_channel INTEGER NOT NULL DEFAULT 0,
	service_code TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_fcc_callsign ON fcc_facilities(callsign);

CREATE TABLE IF NOT EXISTS fcc_corrections (
	callsign TEXT PRIMARY KEY,
	network_affiliation TEXT,
	community_city TEXT,
	community_state TEXT,
	nielsen_dma TEXT,
	virtual_channel INTEGER
);

CREATE TABLE IF NOT EXISTS active_streams (
	session_token TEXT PRIMARY KEY,
	credential_id INTEGER NOT NULL REFERENCES credentials(id) ON DELETE CASCADE,
	stream_id TEXT NOT NULL,
	client_ip TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	last_activity TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_active_streams_credential ON active_streams(credential_id);

CREATE TABLE IF NOT EXISTS channel_health_status (
	channel_id INTEGER PRIMARY KEY REFERENCES channels(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'unknown',
	total INTEGER NOT NULL DEFAULT 0,
	successful INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	distinct_failure_periods INTEGER NOT NULL DEFAULT 0,
	last_check_at TIMESTAMP,
	last_success_at TIMESTAMP,
	last_failure_at TIMESTAMP,
	auto_disabled_at TIMESTAMP,
	manually_reenabled_at TIMESTAMP,
	ignore_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS channel_health_checks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	result TEXT NOT NULL,
	http_code INTEGER,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	analysis TEXT NOT NULL DEFAULT '',
	checked_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_health_checks_channel ON channel_health_checks(channel_id, checked_at);

CREATE TABLE IF NOT EXISTS sync_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS epg_match_rule_sets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS epg_match_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_set_id INTEGER NOT NULL REFERENCES epg_match_rule_sets(id) ON DELETE CASCADE,
	priority INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	action TEXT NOT NULL DEFAULT 'apply',
	match_type TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	pattern TEXT NOT NULL DEFAULT '',
	category_pattern TEXT NOT NULL DEFAULT '',
	category_exclude_pattern TEXT NOT NULL DEFAULT '',
	country_codes TEXT NOT NULL DEFAULT '',
	required_tags TEXT NOT NULL DEFAULT '',
	excluded_tags TEXT NOT NULL DEFAULT '',
	min_confidence REAL NOT NULL DEFAULT 0.75,
	stop_on_match INTEGER NOT NULL DEFAULT 1,
	fallback_epg_channel_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS account_epg_match_rule_sets (
	account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	rule_set_id INTEGER NOT NULL REFERENCES epg_match_rule_sets(id) ON DELETE CASCADE,
	priority INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(account_id, rule_set_id)
);

CREATE TABLE IF NOT EXISTS fcc_match_networks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	tag_patterns TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fcc_match_channel_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	priority INTEGER NOT NULL DEFAULT 0,
	pattern TEXT NOT NULL,
	group_index INTEGER NOT NULL DEFAULT 1,
	networks TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fcc_match_location_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	priority INTEGER NOT NULL DEFAULT 0,
	pattern TEXT NOT NULL,
	city_group INTEGER NOT NULL DEFAULT 0,
	state_group INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fcc_match_strategies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	priority INTEGER NOT NULL DEFAULT 0,
	strategy_type TEXT NOT NULL,
	requires_network INTEGER NOT NULL DEFAULT 0,
	requires_channel INTEGER NOT NULL DEFAULT 0,
	requires_state INTEGER NOT NULL DEFAULT 0,
	requires_city INTEGER NOT NULL DEFAULT 0,
	city_matches_dma INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS epg_exclusion_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern_type TEXT NOT NULL,
	pattern TEXT NOT NULL,
	is_regex INTEGER NOT NULL DEFAULT 0,
	case_sensitive INTEGER NOT NULL DEFAULT 0,
	hide_channel INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS epg_channel_name_mappings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	priority INTEGER NOT NULL DEFAULT 0,
	old_name TEXT NOT NULL,
	new_name TEXT NOT NULL,
	match_type TEXT NOT NULL,
	case_sensitive INTEGER NOT NULL DEFAULT 0
);
`
