// Package database provides SQLite connectivity for the Gray Logic agent.
//
// The agent keeps its persistence snapshots (the access control list and
// digital output fields) in a single SQLite table. This package opens the
// file, or a private in-memory database when Path is MemoryPath, and applies
// the schema migrations embedded by the migrations package.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_name.up.sql, with an optional
// matching .down.sql used by MigrateDown.
package database
