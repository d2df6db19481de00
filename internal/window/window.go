// Package window bounds a time-ordered series to its most recent rows.
package window

// Tail returns the last days rows of rows. Truncated reports whether rows
// were dropped; a non-positive days or a series no longer than days is
// returned unchanged.
//
// The returned slice shares backing storage with rows.
func Tail[T any](rows []T, days int) (out []T, truncated bool) {
	if days <= 0 || len(rows) <= days {
		return rows, false
	}
	return rows[len(rows)-days:], true
}
