// Package migration applies versioned SQL schema changes.
//
// Migration files live in an fs.FS (normally an embedded directory) and follow
// the naming convention {version}_{description}.sql, e.g.
// "001_core_schema.sql". Each file runs in its own transaction and is recorded
// in the schema_migrations table so it is never applied twice.
//
// Statements are written with "?" placeholders only in the version table
// bookkeeping; the executor rebinds them for the target dialect.
//
// Example usage:
//
//	scanner := migration.NewFileScanner(files)
//	executor := migration.NewExecutor(db, rebind)
//	manager := migration.NewManager(scanner, executor, logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
