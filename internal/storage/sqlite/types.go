package sqlite

import "retaildc/internal/schema"

// MapType maps a canonical column type onto a SQLite declared type.
//
// SQLite has no exact decimal storage: NUMERIC affinity would turn "1.50"
// into a REAL, so decimals are declared TEXT and keep their exact digits.
func MapType(t schema.Type) string {
	switch t {
	case schema.TypeInt:
		return "INTEGER"
	case schema.TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}
