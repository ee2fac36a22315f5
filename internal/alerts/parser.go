// Package alerts parses the PATH alerts feed into discrete timestamped
// entries and groups related entries into incident narratives.
package alerts

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Entry is one parsed incident line. A zero Time means the feed's timestamp
// could not be parsed; such entries sort before any dated entry.
type Entry struct {
	Text string
	Time time.Time
}

// IsElevator reports whether the entry concerns an elevator outage.
func (e Entry) IsElevator() bool {
	return strings.Contains(strings.ToLower(e.Text), "elevator")
}

// Parsed is the parser output. HasError distinguishes an unparseable payload
// from a payload that genuinely contains no alerts.
type Parsed struct {
	Narratives []Narrative
	HasError   bool
}

const noAlertsSentinel = "There are no active PATHAlerts at this time"

// The feed's timestamps look like "6/5/2023 04:37 PM", eastern time.
const timestampLayout = "1/2/2006 03:04 PM"

var feedLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Local
	}
	return loc
}()

var (
	timePrefixRe = regexp.MustCompile(`^\d{1,2}[: ]\d{1,2} ?[apAP][mM][: ]?`)
	apologyRe    = regexp.MustCompile(`We (apologize|regret) (for )?(the|this|any)?( )?(inconvenience)( )?(this )?(may )?(have|has)?( )?(caused)?(.*\.)`)
)

// Parse parses the HTML-ish alerts scrape into grouped narratives.
//
// Any malformed payload degrades to HasError with whatever entries were
// extracted; a payload carrying the no-alerts sentinel is empty and error
// free. Parse never panics across the package boundary.
func Parse(content string) Parsed {
	noAlerts := strings.Contains(content, noAlertsSentinel)
	entries := parseEntries(content)
	return Parsed{
		HasError:   !noAlerts && len(entries) == 0,
		Narratives: Group(entries),
	}
}

// ParseEntries extracts, cleans, sorts and dedupes the raw alert entries
// without grouping them.
func ParseEntries(content string) ([]Entry, bool) {
	noAlerts := strings.Contains(content, noAlertsSentinel)
	entries := parseEntries(content)
	return entries, !noAlerts && len(entries) == 0
}

func parseEntries(content string) (entries []Entry) {
	// A broken scrape must degrade, never take the dashboard down.
	defer func() {
		if recover() != nil {
			entries = nil
		}
	}()

	if strings.Contains(content, noAlertsSentinel) {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(content, "&quot", "")))
	if err != nil {
		return nil
	}

	var timestamps, texts []string
	doc.Find(".stationName").Each(func(_ int, s *goquery.Selection) {
		timestamps = append(timestamps, s.Text())
	})
	doc.Find(".alertText").Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})

	n := len(timestamps)
	if len(texts) < n {
		n = len(texts)
	}
	for i := 0; i < n; i++ {
		text := cleanText(texts[i])
		if text == "" || strings.Contains(strings.ToLower(text), "satisfaction survey") {
			continue
		}
		var ts time.Time
		if parsed, err := time.ParseInLocation(timestampLayout, strings.TrimSpace(timestamps[i]), feedLocation); err == nil {
			ts = parsed
		}
		entries = append(entries, Entry{Text: text, Time: ts})
	}

	return normalizeEntries(entries)
}

// Normalize sorts entries ascending by timestamp (zero/unknown first) and
// removes duplicate texts, keeping the first occurrence in sort order. Used
// when merging entries from more than one feed.
func Normalize(entries []Entry) []Entry {
	return normalizeEntries(entries)
}

// normalizeEntries sorts ascending by timestamp (zero/unknown first) and
// removes duplicate texts, keeping the first occurrence in sort order.
func normalizeEntries(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if seen[e.Text] {
			continue
		}
		seen[e.Text] = true
		out = append(out, e)
	}
	return out
}

// cleanText strips boilerplate the feed repeats on every line: the leading
// clock prefix (it duplicates the timestamp column), PATHAlert tags, apology
// sentences, URL-bearing sentences, and doubled spacing.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	s = collapseSpaces(s)
	s = timePrefixRe.ReplaceAllString(s, "")
	for _, repl := range [...][2]string{
		{"An update will be issued in approx.", "Update in"},
		{"An update will be issued in approx", "Update in"},
		{"An update will be issued w/in approx", "Update in"},
		{"Next update will be issued w/in approx", "Update in"},
		{"Next update w/in", "Update in"},
	} {
		s = strings.ReplaceAll(s, repl[0], repl[1])
	}
	s = apologyRe.ReplaceAllString(s, "")
	for _, junk := range [...]string{
		"PATHAlert Final Update:",
		"PATHAlert Update:",
		"PATHAlert:",
		"Real-Time Train Departures on: - RidePATH app: - PATH website:",
	} {
		s = strings.ReplaceAll(s, junk, "")
	}
	s = dropURLSentences(s)
	s = collapseSpaces(s)
	s = strings.ReplaceAll(s, "..", ".")
	s = strings.ReplaceAll(s, "..", ".")
	return addPeriod(strings.TrimSpace(s))
}

func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}

func dropURLSentences(s string) string {
	parts := strings.Split(strings.TrimSpace(s), ". ")
	kept := parts[:0]
	for _, p := range parts {
		if strings.Contains(p, "http") {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ". ")
}

func addPeriod(s string) string {
	if s == "" || strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}
