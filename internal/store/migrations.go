package store

import (
	"database/sql"
	"fmt"

	"tasknerd/internal/logging"
)

// Schema versions:
// v1: users, projects, tasks, tags, task_tags
// v2: tasks.updated_at
// v3: session_turns
const CurrentSchemaVersion = 3

// Migration adds one column to an existing table.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations handle databases whose tables predate newer columns.
// CREATE TABLE IF NOT EXISTS never alters an existing table.
var pendingMigrations = []Migration{
	{"tasks", "updated_at", "TEXT NOT NULL DEFAULT ''"},
	{"projects", "description", "TEXT NOT NULL DEFAULT ''"},
	{"session_turns", "reply", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies column migrations and records the schema version.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) || columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	// Backfill rows migrated without an updated_at value.
	if _, err := db.Exec("UPDATE tasks SET updated_at = created_at WHERE updated_at = ''"); err != nil {
		return fmt.Errorf("failed to backfill updated_at: %w", err)
	}

	if GetSchemaVersion(db) < CurrentSchemaVersion {
		if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
			return err
		}
	}
	logging.StoreDebug("Schema migrations complete: applied=%d", applied)
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&n)
	if err != nil {
		logging.StoreDebug("pragma_table_info(%s) failed: %v", table, err)
		return false
	}
	return n > 0
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}

// GetSchemaVersion returns the recorded schema version, 0 if none.
func GetSchemaVersion(db *sql.DB) int {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		logging.StoreDebug("PRAGMA user_version failed: %v", err)
		return 0
	}
	return version
}

// SetSchemaVersion records a new schema version in the database.
func SetSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	logging.Store("Schema version set to %d", version)
	return nil
}
