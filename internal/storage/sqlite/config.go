package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:retail.db?cache=shared"
	//   "retail.db" (interpreted by the driver)
	DSN string

	// BatchSize bounds rows per prepared-statement flush.
	BatchSize int
}
