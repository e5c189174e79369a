package store

import (
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width UTC so that SQLite string comparison orders
// timestamps chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ts renders t as a bind argument for a timestamp column. Postgres takes
// time.Time natively; SQLite gets the fixed-width text form.
func (db *DB) ts(t time.Time) any {
	if db.driver == "postgres" {
		return t.UTC()
	}
	return t.UTC().Format(timeLayout)
}

func (db *DB) tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return db.ts(*t)
}

// localTS renders t for comparison against columns filled by the
// datetime('now','localtime') default.
func (db *DB) localTS(t time.Time) any {
	if db.driver == "postgres" {
		return t
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// parseTime converts a scanned timestamp value to time.Time.
// Handles both SQLite (returns string) and Postgres (returns time.Time).
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case []byte:
		return parseTime(string(t))
	case string:
		if t == "" {
			return time.Time{}
		}
		for _, layout := range []string{
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"2006-01-02 15:04:05-07:00",
			"2006-01-02 15:04:05.999999-07:00",
		} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	}
	return time.Time{}
}

// parseTimePtr is like parseTime but returns nil for zero/missing timestamps.
func parseTimePtr(v any) *time.Time {
	t := parseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
