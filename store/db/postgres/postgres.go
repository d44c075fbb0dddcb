package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/criadex/criabot/internal/profile"
	"github.com/criadex/criabot/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL connection for the configured DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database with dsn: %s", profile.DSN)
	}

	return &DB{db: db, profile: profile}, nil
}

const migrationDDL = `
CREATE TABLE IF NOT EXISTS bots (
	id SERIAL PRIMARY KEY,
	name VARCHAR(128) NOT NULL UNIQUE,
	created TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bot_parameters (
	id SERIAL PRIMARY KEY,
	bot_id INTEGER NOT NULL UNIQUE REFERENCES bots (id) ON DELETE CASCADE,
	max_input_tokens INTEGER NOT NULL,
	max_reply_tokens INTEGER NOT NULL,
	temperature NUMERIC(3, 1) NOT NULL,
	top_p NUMERIC(3, 1) NOT NULL,
	top_k INTEGER NOT NULL,
	min_k NUMERIC(3, 1) NOT NULL,
	top_n INTEGER NOT NULL,
	min_n NUMERIC(3, 1) NOT NULL,
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
