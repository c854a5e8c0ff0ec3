// Package models defines the domain types shared across timetree packages.
package models

import "time"

// NoteMeta is a lightweight representation of a vault file returned by
// storage listings.
type NoteMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link is a directed reference discovered in a note body. Target is the raw
// wikilink text; resolution to a concrete note happens in the index.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Backlink is a note that references another note, together with the
// metadata the parent resolver needs to pick a canonical parent.
type Backlink struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// TrackerEntry is a single start/end interval recorded by a time tracker.
// End is zero for an entry that is still open.
type TrackerEntry struct {
	Start time.Time
	End   time.Time
}

// TrackerSession is one tracker block found in a note body: an ordered list
// of intervals under an optional session name.
type TrackerSession struct {
	Name    string
	Entries []TrackerEntry
}

// Frontmatter attribute names written by the aggregation engine. The
// descendant-aggregate key is configurable (historically both
// "elapsed_child" and "descendants" were in use); the others are fixed.
const (
	AttrElapsed  = "elapsed"
	AttrNodeSize = "node_size"
	AttrRunning  = "running"

	DefaultChildKey = "elapsed_child"
)
