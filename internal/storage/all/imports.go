// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which register their factories with the storage package. Importing it makes
// the following storage kinds available at runtime:
//
//   - "postgres" (retaildc/internal/storage/postgres)
//   - "mssql"    (retaildc/internal/storage/mssql)
//   - "mysql"    (retaildc/internal/storage/mysql)
//   - "sqlite"   (retaildc/internal/storage/sqlite)
//   - "mongo"    (retaildc/internal/storage/mongo)
//
// Typical usage (in cmd/retaildc or a similar wiring layer):
//
//	import _ "retaildc/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//	if err != nil { ... }
//	defer repo.Close()
package all

import (
	_ "retaildc/internal/storage/mongo"
	_ "retaildc/internal/storage/mssql"
	_ "retaildc/internal/storage/mysql"
	_ "retaildc/internal/storage/postgres"
	_ "retaildc/internal/storage/sqlite"
)
