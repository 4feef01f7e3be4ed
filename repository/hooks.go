package repository

import "time"

// InsertPreparer is implemented (on the pointer receiver) by records that
// fill their own defaults, typically timestamps, before an adapter inserts them.
type InsertPreparer interface {
	PrepareInsert(now time.Time)
}

// PrepareInsert runs the record's InsertPreparer hook, if any.
func PrepareInsert[T any](record *T, now time.Time) {
	if p, ok := any(record).(InsertPreparer); ok {
		p.PrepareInsert(now)
	}
}
