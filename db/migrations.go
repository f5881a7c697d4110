package db

import (
	"database/sql"
	"log"
)

const (
	sqlCreateActorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_actors_origin_oid ON actors(origin_id, oid);
		CREATE INDEX IF NOT EXISTS idx_actors_origin_webfinger ON actors(origin_id, webfinger_id);
		CREATE INDEX IF NOT EXISTS idx_actors_origin_username ON actors(origin_id, username);
	`

	sqlCreateNotesIndices = `
		CREATE INDEX IF NOT EXISTS idx_notes_note_id ON notes(note_id);
		CREATE INDEX IF NOT EXISTS idx_notes_updated_date ON notes(updated_date);
		CREATE INDEX IF NOT EXISTS idx_notes_linked_account ON notes(linked_account);
	`

	sqlCreateRebloggersIndices = `
		CREATE INDEX IF NOT EXISTS idx_note_rebloggers_note_id ON note_rebloggers(note_id);
	`

	sqlCreateFetchLogIndices = `
		CREATE INDEX IF NOT EXISTS idx_fetch_log_actor_id ON fetch_log(actor_id);
	`
)

// RunMigrations creates the lookup indices the identity resolver depends on.
// Safe to run repeatedly.
func (db *DB) RunMigrations() error {
	log.Println("Running database migrations...")
	return db.wrapTransaction(func(tx *sql.Tx) error {
		for _, stmt := range []string{
			sqlCreateActorsIndices,
			sqlCreateNotesIndices,
			sqlCreateRebloggersIndices,
			sqlCreateFetchLogIndices,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
