// Package database provides SQLite connectivity for the Gray Logic Compositor.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Versioned schema migrations read from an fs.FS
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only: new columns must be nullable or carry a
// default, and every .up.sql file should ship with a .down.sql.
package database
