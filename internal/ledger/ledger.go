/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ledger provides a rolling, time-windowed record collection.
package ledger

import (
	"sort"
	"time"
)

// Timestamped is implemented by records stored in a Ledger.
type Timestamped interface {
	Timestamp() time.Time
}

// Ledger keeps records in arrival order and drops them once they age out of a window.
// Records are expected to arrive with non-decreasing timestamps.
// A Ledger is not safe for concurrent use; callers guard it with their own lock.
type Ledger[T Timestamped] struct {
	records []T
}

// New creates an empty ledger.
func New[T Timestamped]() *Ledger[T] {
	return &Ledger[T]{}
}

// Append adds a record to the end of the ledger.
func (l *Ledger[T]) Append(record T) {
	l.records = append(l.records, record)
}

// Prune drops every record with timestamp <= now-window and returns how many were dropped.
func (l *Ledger[T]) Prune(window time.Duration, now time.Time) int {
	idx := l.firstAfter(now.Add(-window))
	if idx == 0 {
		return 0
	}
	kept := make([]T, len(l.records)-idx)
	copy(kept, l.records[idx:])
	l.records = kept
	return idx
}

// Recent returns a copy of the records with timestamp > now-window.
func (l *Ledger[T]) Recent(window time.Duration, now time.Time) []T {
	idx := l.firstAfter(now.Add(-window))
	out := make([]T, len(l.records)-idx)
	copy(out, l.records[idx:])
	return out
}

// All returns a copy of every retained record.
func (l *Ledger[T]) All() []T {
	out := make([]T, len(l.records))
	copy(out, l.records)
	return out
}

// Len reports the number of retained records.
func (l *Ledger[T]) Len() int {
	return len(l.records)
}

func (l *Ledger[T]) firstAfter(cutoff time.Time) int {
	return sort.Search(len(l.records), func(i int) bool {
		return l.records[i].Timestamp().After(cutoff)
	})
}
