package helpers

import "database/sql"

// GetNullString converts a string pointer to sql.NullString.
// A nil pointer or an empty string is stored as NULL.
func GetNullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// GetNullInt64 converts an optional int64 to sql.NullInt64.
func GetNullInt64(i *int64) sql.NullInt64 {
	if i == nil || *i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
