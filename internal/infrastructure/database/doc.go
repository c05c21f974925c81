// Package database provides SQLite connectivity for the posebridge journal.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations from any fs.FS (the binary embeds its own)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Files are named YYYYMMDD_HHMMSS_description.up.sql with an optional
// matching .down.sql. Migrations are additive: new columns must be NULLABLE
// or have DEFAULT values.
package database
