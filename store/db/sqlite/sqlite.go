package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/criadex/criabot/internal/profile"
	"github.com/criadex/criabot/store"
)

// SQLite is supported for development and testing. Concurrent writes are
// limited by the engine; production deployments should use postgres.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a SQLite database at the configured DSN with WAL mode and
// busy-timeout settings suitable for a single-instance server.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("sqlite", profile.DSN+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite handles a single writer only.
	db.SetMaxOpenConns(1)

	return &DB{db: db, profile: profile}, nil
}

const migrationDDL = `
CREATE TABLE IF NOT EXISTS bots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bot_parameters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bot_id INTEGER NOT NULL UNIQUE REFERENCES bots (id) ON DELETE CASCADE,
	max_input_tokens INTEGER NOT NULL,
	max_reply_tokens INTEGER NOT NULL,
	temperature REAL NOT NULL,
	top_p REAL NOT NULL,
	top_k INTEGER NOT NULL,
	min_k REAL NOT NULL,
	top_n INTEGER NOT NULL,
	min_n REAL NOT NULL,
	llm_generate_related_prompts BOOLEAN NOT NULL,
	no_context_message TEXT NOT NULL,
	no_context_use_message BOOLEAN NOT NULL,
	no_context_llm_guess BOOLEAN NOT NULL,
	system_message TEXT NOT NULL DEFAULT ''
);
`

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, migrationDDL); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
