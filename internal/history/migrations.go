package history

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		started_at    DATETIME NOT NULL,
		finished_at   DATETIME NOT NULL,
		period        TEXT NOT NULL,
		billing_total TEXT NOT NULL DEFAULT '0',
		regions       TEXT NOT NULL DEFAULT '[]',
		categories    TEXT NOT NULL DEFAULT '[]',
		resources     INTEGER NOT NULL DEFAULT 0,
		finding_count INTEGER NOT NULL DEFAULT 0,
		savings       TEXT NOT NULL DEFAULT '0',
		report_path   TEXT NOT NULL DEFAULT '',
		errors        TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS findings (
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		finding_id    TEXT NOT NULL,
		severity      TEXT NOT NULL CHECK(severity IN ('HIGH', 'MEDIUM', 'LOW')),
		category      TEXT NOT NULL DEFAULT '',
		subject_id    TEXT NOT NULL,
		region        TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL,
		action        TEXT NOT NULL DEFAULT '',
		impact        TEXT NOT NULL DEFAULT '',
		impact_amount TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (run_id, position)
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
