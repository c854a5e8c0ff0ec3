package mcpserver

// TrackerFormatContract describes the time-tracker block and the derived
// frontmatter attributes that LLM consumers will encounter in notes.
const TrackerFormatContract = `# Time Tree Note Contract

Notes participating in the time tree carry tracked durations and derived
attributes.

## Tracked durations

Durations live in fenced tracker blocks inside the note body:

` + "```" + `markdown
` + "```" + `simple-time-tracker
{"entries": [{"startTime": "2025-01-20T09:00:00Z", "endTime": "2025-01-20T10:30:00Z"}]}
` + "```" + `
` + "```" + `

- ` + "`" + `startTime` + "`" + ` / ` + "`" + `endTime` + "`" + ` are RFC 3339 timestamps.
- An entry with an empty ` + "`" + `endTime` + "`" + ` is still running; its span is
  measured against the current clock.
- Entries may carry a ` + "`" + `subEntries` + "`" + ` list; nested entries are summed the
  same way.

## Derived frontmatter attributes

The engine writes these keys into the YAML frontmatter. Do NOT edit them by
hand; they are overwritten on every recompute.

- ` + "`" + `elapsed` + "`" + ` — the note's own tracked seconds.
- ` + "`" + `elapsed_child` + "`" + ` — seconds accumulated over the note's descendants.
- ` + "`" + `node_size` + "`" + ` — render diameter in [6, 100], area-proportional to the
  note's accumulated time relative to the rest of the tree.
- ` + "`" + `running` + "`" + ` — true while a tracker entry is open.

## Tree structure

- The tree follows [[wikilinks]]: a link from A to B makes B a child of A.
- A note's canonical parent is its earliest-created in-scope backlink.
- Other frontmatter keys and the note body are never touched by the engine.
`
