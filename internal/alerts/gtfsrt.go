package alerts

import (
	"fmt"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// ParseRT decodes a GTFS-RT service-alerts feed into the same entry list the
// HTML parser produces, so both feeds flow through one grouping pipeline.
// The entry timestamp comes from the alert's first active period.
func ParseRT(data []byte) ([]Entry, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(data, feed); err != nil {
		return nil, fmt.Errorf("parse GTFS-RT alerts: %w", err)
	}

	var entries []Entry
	for _, entity := range feed.GetEntity() {
		a := entity.GetAlert()
		if a == nil {
			continue
		}

		header := getTranslation(a.GetHeaderText())
		desc := getTranslation(a.GetDescriptionText())
		text := header
		if desc != "" {
			if text != "" {
				text = addPeriod(text) + " " + desc
			} else {
				text = desc
			}
		}
		text = cleanText(text)
		if text == "" {
			continue
		}

		var ts time.Time
		if periods := a.GetActivePeriod(); len(periods) > 0 && periods[0].GetStart() > 0 {
			ts = time.Unix(int64(periods[0].GetStart()), 0)
		}
		entries = append(entries, Entry{Text: text, Time: ts})
	}

	return normalizeEntries(entries), nil
}

func getTranslation(ts *gtfs.TranslatedString) string {
	if ts == nil {
		return ""
	}
	for _, t := range ts.GetTranslation() {
		if text := t.GetText(); text != "" {
			return text
		}
	}
	return ""
}
