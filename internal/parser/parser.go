// Package parser extracts frontmatter, wikilinks, and time-tracker blocks
// from Markdown content.
package parser

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lucasmnt/timetree/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	trackerRe  = regexp.MustCompile("(?s)```simple-time-tracker(.*?)```")
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Title       string
	Created     time.Time
	Trackers    []models.TrackerSession
}

// Parse extracts frontmatter, body, wikilinks, and tracker sessions from raw
// Markdown bytes. Malformed tracker blocks are skipped; they never fail the
// parse.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Title:       deriveTitle(fm, body),
		Created:     extractCreated(fm),
		Trackers:    ExtractTrackers(body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found, or the block does not
// parse, the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML — index the whole file as body. The attribute
		// store is stricter; here a broken header must not break search
		// or link discovery.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		// [[Target|Alias]] → Target.
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		// [[Target#Heading]] → Target.
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// extractCreated reads the frontmatter "created" field. yaml.v3 decodes
// canonical timestamps into time.Time already; date-only strings are parsed
// here. Returns zero time when absent or unparseable.
func extractCreated(fm map[string]interface{}) time.Time {
	if fm == nil {
		return time.Time{}
	}
	raw, ok := fm["created"]
	if !ok {
		return time.Time{}
	}
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// trackerBlock mirrors the JSON emitted by the simple-time-tracker plugin.
type trackerBlock struct {
	Name    string         `json:"name"`
	Entries []trackerEntry `json:"entries"`
}

type trackerEntry struct {
	Name       string         `json:"name"`
	StartTime  string         `json:"startTime"`
	EndTime    string         `json:"endTime"`
	SubEntries []trackerEntry `json:"subEntries"`
}

// ExtractTrackers finds all simple-time-tracker code blocks in body and
// decodes them. Empty blocks are not an error; blocks with invalid JSON are
// skipped. Entry timestamps that cannot be parsed leave the corresponding
// field zero.
func ExtractTrackers(body string) []models.TrackerSession {
	matches := trackerRe.FindAllStringSubmatch(body, -1)
	var out []models.TrackerSession
	for _, m := range matches {
		raw := strings.TrimSpace(m[1])
		if raw == "" {
			continue
		}
		var block trackerBlock
		if err := json.Unmarshal([]byte(raw), &block); err != nil {
			continue
		}
		session := models.TrackerSession{
			Name:    trimLinkMarkers(block.Name),
			Entries: flattenEntries(block.Entries, nil),
		}
		out = append(out, session)
	}
	return out
}

// flattenEntries walks a possibly nested entry list. A parent entry with
// subEntries carries no span of its own; only the leaves count.
func flattenEntries(entries []trackerEntry, acc []models.TrackerEntry) []models.TrackerEntry {
	for _, e := range entries {
		if len(e.SubEntries) > 0 {
			acc = flattenEntries(e.SubEntries, acc)
			continue
		}
		acc = append(acc, models.TrackerEntry{
			Start: parseTrackerTime(e.StartTime),
			End:   parseTrackerTime(e.EndTime),
		})
	}
	return acc
}

// trimLinkMarkers strips surrounding [[ ]] from tracker session names, which
// the tracker plugin records as wikilinks.
func trimLinkMarkers(name string) string {
	name = strings.TrimPrefix(name, "[[")
	name = strings.TrimSuffix(name, "]]")
	return name
}

func parseTrackerTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
