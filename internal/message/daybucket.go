package message

import (
	"sort"
	"time"
)

// DayGroup is one section of a chronological history list.
type DayGroup struct {
	Label    string
	Messages []VoiceMessage
}

// DayLabel maps a capture time to its history section: Today, Yesterday, or
// the calendar date. Comparison happens in now's location so a recording
// made just before midnight local time lands in the right bucket.
func DayLabel(at, now time.Time) string {
	at = at.In(now.Location())
	switch {
	case sameDay(at, now):
		return "Today"
	case sameDay(at, now.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return at.Format("1/2/2006")
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// GroupByDay sections messages for display, preserving their relative order
// within each group. Messages are sorted oldest-first before grouping;
// groups appear in the order their first message does.
func GroupByDay(msgs []VoiceMessage, now time.Time) []DayGroup {
	sorted := make([]VoiceMessage, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time().Before(sorted[j].Time())
	})

	var groups []DayGroup
	byLabel := make(map[string]int)
	for _, m := range sorted {
		label := DayLabel(m.Time(), now)
		i, ok := byLabel[label]
		if !ok {
			i = len(groups)
			byLabel[label] = i
			groups = append(groups, DayGroup{Label: label})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}
