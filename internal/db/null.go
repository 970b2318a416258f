package db

import (
	"database/sql"
	"time"
)

// NullTime wraps a time.Time in a valid sql.NullTime. A zero time yields an
// invalid (NULL) value.
func NullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// NullTimePtr converts an optional time into sql.NullTime.
func NullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// NullString wraps a string in sql.NullString; empty means NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullBool wraps a bool in a valid sql.NullBool.
func NullBool(b bool) sql.NullBool {
	return sql.NullBool{Bool: b, Valid: true}
}

// NullInt64 wraps an int64 in a valid sql.NullInt64.
func NullInt64(i int64) sql.NullInt64 {
	return sql.NullInt64{Int64: i, Valid: true}
}

// NullInt64Ptr converts an optional int64 into sql.NullInt64.
func NullInt64Ptr(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
