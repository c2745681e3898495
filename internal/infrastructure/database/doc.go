// Package database provides the SQLite store behind the command audit
// trail.
//
// Open configures WAL mode and a busy timeout, and Migrate applies the
// embedded schema migrations:
//
//	db, err := database.Open(database.Config{Path: cfg.Audit.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: every .up.sql has a matching .down.sql and new
// columns are nullable or defaulted.
package database
