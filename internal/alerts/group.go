package alerts

import (
	"sort"
	"strings"

	"pathdash/internal/path"
)

// Title names a narrative. Route titles carry the affected routes plus the
// verb clause that followed them ("delayed", "resuming normal service");
// freeform titles carry the entry's leading phrase verbatim.
type Title struct {
	Routes []path.Route
	Text   string
}

// IsRouteTitle reports whether the title named at least one known route.
func (t Title) IsRouteTitle() bool { return len(t.Routes) > 0 }

func (t Title) String() string {
	if !t.IsRouteTitle() {
		return t.Text
	}
	names := make([]string, len(t.Routes))
	for i, r := range t.Routes {
		names[i] = r.String()
	}
	joined := strings.Join(names, ", ")
	if t.Text == "" {
		return joined
	}
	return joined + " " + t.Text
}

// Narrative is a group of related alert entries about one ongoing
// disruption: the latest message plus the running history, newest first.
type Narrative struct {
	Title   Title
	Latest  Entry
	History []Entry
}

// Matches reports whether the narrative's title names the given route.
func (n Narrative) Matches(route path.Route) bool {
	for _, r := range n.Title.Routes {
		if r == route {
			return true
		}
	}
	return false
}

// Alert text names routes by their display abbreviations. Longer spellings
// must match before their prefixes.
var routeSpellings = []struct {
	text  string
	route path.Route
}{
	{"JSQ-33 via HOB", path.JSQ33ViaHOB},
	{"33-JSQ via HOB", path.JSQ33ViaHOB},
	{"HOB-33", path.HOB33},
	{"33-HOB", path.HOB33},
	{"JSQ-33", path.JSQ33},
	{"33-JSQ", path.JSQ33},
	{"NWK-WTC", path.NWKWTC},
	{"WTC-NWK", path.NWKWTC},
	{"HOB-WTC", path.HOBWTC},
	{"WTC-HOB", path.HOBWTC},
}

// extractRouteTitle pulls the route list off the front of a title clause.
// "NWK-WTC, HOB-WTC delayed" yields both routes plus the text "delayed".
// Returns ok=false if the clause names no known route.
func extractRouteTitle(clause string) (Title, bool) {
	var routes []path.Route
	rest := clause
	for _, candidate := range strings.Split(clause, ", ") {
		for _, sp := range routeSpellings {
			if strings.HasPrefix(strings.TrimSpace(candidate), sp.text) {
				routes = append(routes, sp.route)
				rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(rest, sp.text), ", "))
				break
			}
		}
	}
	if len(routes) == 0 {
		return Title{}, false
	}
	return Title{Routes: routes, Text: rest}, true
}

// toTitle classifies a leading clause as a route title or a freeform one.
func toTitle(clause string) Title {
	if t, ok := extractRouteTitle(clause); ok {
		return t
	}
	return Title{Text: clause}
}

// leadingClause is the entry text up to (not including) the first period.
func leadingClause(text string) string {
	if i := strings.Index(text, "."); i >= 0 {
		return text[:i]
	}
	return text
}

// afterClause is the entry text after the first period, trimmed.
func afterClause(text string) string {
	if i := strings.Index(text, "."); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}

// Group builds incident narratives from a sorted entry list. Entries sharing
// a normalized title clause collapse into one narrative whose Latest is the
// most recent entry and whose History holds the older ones, newest first,
// each stripped of the shared title prefix. Singletons become degenerate
// narratives with empty history. A route narrative whose route set is
// contained in another's is absorbed into the larger one's history.
func Group(entries []Entry) []Narrative {
	type group struct {
		key     string
		entries []Entry
	}
	var order []string
	byKey := make(map[string]*group)

	for _, e := range entries {
		key := groupKey(e.Text)
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key}
			byKey[key] = g
			order = append(order, key)
		}
		g.entries = append(g.entries, e)
	}

	narratives := make([]Narrative, 0, len(order))
	for _, key := range order {
		narratives = append(narratives, buildNarrative(byKey[key].entries))
	}
	return absorbContainedRoutes(narratives)
}

// groupKey normalizes an entry's text into its grouping key.
func groupKey(text string) string {
	if strings.Contains(text, "Service Advisory") {
		return text
	}
	clause := leadingClause(text)
	if t, ok := extractRouteTitle(clause); ok {
		names := make([]string, len(t.Routes))
		for i, r := range t.Routes {
			names[i] = r.String()
		}
		return strings.Join(names, ", ")
	}
	return clause
}

// buildNarrative collapses one group. Entries arrive ascending by time, so
// the last one is the most recent.
func buildNarrative(entries []Entry) Narrative {
	title := toTitle(leadingClause(entries[0].Text))

	if len(entries) == 1 && !title.IsRouteTitle() {
		return Narrative{Title: title, Latest: entries[0]}
	}

	stripped := make([]Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		text := afterClause(e.Text)
		if text == "" {
			// Nothing beyond the title clause; keep the clause itself so the
			// entry still reads as a message.
			text = addPeriod(leadingClause(e.Text))
		}
		if seen[text] {
			continue
		}
		seen[text] = true
		stripped = append(stripped, Entry{Text: text, Time: e.Time})
	}

	latest := stripped[len(stripped)-1]
	history := make([]Entry, 0, len(stripped)-1)
	for i := len(stripped) - 2; i >= 0; i-- {
		history = append(history, stripped[i])
	}
	return Narrative{Title: title, Latest: latest, History: history}
}

// absorbContainedRoutes folds a route narrative into another whose route set
// strictly contains it, merging its messages into the survivor's history.
func absorbContainedRoutes(narratives []Narrative) []Narrative {
	absorbed := make(map[int]bool)
	for i, a := range narratives {
		if !a.Title.IsRouteTitle() || absorbed[i] {
			continue
		}
		for j, b := range narratives {
			if i == j || !b.Title.IsRouteTitle() || absorbed[j] {
				continue
			}
			if containsAllRoutes(b.Title.Routes, a.Title.Routes) && !containsAllRoutes(a.Title.Routes, b.Title.Routes) {
				merged := append([]Entry{a.Latest}, a.History...)
				narratives[j].History = append(narratives[j].History, merged...)
				sort.SliceStable(narratives[j].History, func(x, y int) bool {
					return narratives[j].History[x].Time.After(narratives[j].History[y].Time)
				})
				absorbed[i] = true
				break
			}
		}
	}
	if len(absorbed) == 0 {
		return narratives
	}
	out := narratives[:0]
	for i, n := range narratives {
		if !absorbed[i] {
			out = append(out, n)
		}
	}
	return out
}

func containsAllRoutes(haystack, needles []path.Route) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if h == n {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
