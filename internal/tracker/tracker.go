// Package tracker turns simple-time-tracker sessions embedded in notes into
// elapsed seconds.
package tracker

import (
	"time"

	"github.com/lucasmnt/timetree/internal/models"
	"github.com/lucasmnt/timetree/internal/parser"
	"github.com/lucasmnt/timetree/internal/storage"
)

// Source reads tracker sessions out of vault notes. The clock is injectable
// so open-ended entries can be prorated deterministically in tests.
type Source struct {
	store storage.Provider
	now   func() time.Time
}

// New creates a Source over the given vault provider.
func New(store storage.Provider) *Source {
	return &Source{store: store, now: time.Now}
}

// WithClock overrides the clock used for open-ended entries.
func (s *Source) WithClock(now func() time.Time) *Source {
	s.now = now
	return s
}

// SessionsFor returns all tracker sessions recorded in the note at path.
// A note without tracker blocks yields an empty slice, not an error.
func (s *Source) SessionsFor(path string) ([]models.TrackerSession, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return res.Trackers, nil
}

// Total collapses sessions to a single duration in seconds. With onlyFirst
// set, only the first session counts; otherwise all sessions are summed.
// It also reports whether any counted entry is still open.
func (s *Source) Total(sessions []models.TrackerSession, onlyFirst bool) (float64, bool) {
	if onlyFirst && len(sessions) > 1 {
		sessions = sessions[:1]
	}
	var total float64
	running := false
	for _, session := range sessions {
		sec, open := s.entriesTotal(session.Entries)
		total += sec
		running = running || open
	}
	return total, running
}

// entriesTotal sums entry durations. Entries without a start are skipped;
// entries without an end are prorated against the current clock.
func (s *Source) entriesTotal(entries []models.TrackerEntry) (float64, bool) {
	var total float64
	open := false
	for _, e := range entries {
		if e.Start.IsZero() {
			continue
		}
		end := e.End
		if end.IsZero() {
			end = s.now()
			open = true
		}
		if d := end.Sub(e.Start); d > 0 {
			total += d.Seconds()
		}
	}
	return total, open
}
