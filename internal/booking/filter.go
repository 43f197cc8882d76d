package booking

import (
	"sort"
	"strings"
	"time"
)

// DateRange is a disjoint relative day-offset bucket measured backwards from
// today in the Bangkok zone.
type DateRange string

const (
	RangeAll       DateRange = "all"
	RangeToday     DateRange = "today"
	RangeYesterday DateRange = "yesterday"
	RangeTwoThree  DateRange = "2-3days"
	RangeWeek      DateRange = "week"
	RangeMonth     DateRange = "month"
	RangeYear      DateRange = "year"
)

// ParseRange maps a query value to a DateRange; anything unknown means no
// date filtering.
func ParseRange(s string) DateRange {
	switch DateRange(s) {
	case RangeToday, RangeYesterday, RangeTwoThree, RangeWeek, RangeMonth, RangeYear:
		return DateRange(s)
	default:
		return RangeAll
	}
}

// contains reports whether a record offset (days before today) falls in the
// bucket. Buckets are disjoint: today=0, yesterday=1, 2-3 days, then the
// remainder of a week, month and year.
func (r DateRange) contains(offset int) bool {
	switch r {
	case RangeToday:
		return offset == 0
	case RangeYesterday:
		return offset == 1
	case RangeTwoThree:
		return offset >= 2 && offset <= 3
	case RangeWeek:
		return offset >= 4 && offset <= 7
	case RangeMonth:
		return offset >= 8 && offset <= 30
	case RangeYear:
		return offset >= 31 && offset <= 365
	default:
		return true
	}
}

// SortOrder controls timestamp ordering of the result list.
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filter is the set of independent AND conditions applied to the record list.
type Filter struct {
	Search    string
	TimeSlots []string
	Range     DateRange
	Sort      SortOrder
}

// Apply filters and sorts records. Search is a case-insensitive substring
// match across names, time slot, symptoms and treatment. Records without a
// parseable timestamp are excluded by any date-range condition and compare
// equal under sorting: the sort is stable and never hoists them to either end.
func Apply(records []VisitRecord, f Filter, now time.Time) []VisitRecord {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	slots := make(map[string]bool, len(f.TimeSlots))
	for _, s := range f.TimeSlots {
		if s != "" && s != "all" {
			slots[s] = true
		}
	}
	today := dayStart(now)

	out := make([]VisitRecord, 0, len(records))
	for _, rec := range records {
		if needle != "" && !matchesSearch(rec, needle) {
			continue
		}
		if len(slots) > 0 && !slots[rec.TimeSlot] {
			continue
		}
		if f.Range != RangeAll && f.Range != "" {
			if rec.ParsedAt.IsZero() {
				continue
			}
			offset := int(today.Sub(dayStart(rec.ParsedAt)).Hours() / 24)
			if !f.Range.contains(offset) {
				continue
			}
		}
		out = append(out, rec)
	}

	sortByTimestamp(out, f.Sort)
	return out
}

// sortByTimestamp orders dated records among themselves and leaves records
// without a parseable timestamp at their original positions: equal to each
// other, hoisted to neither end.
func sortByTimestamp(records []VisitRecord, order SortOrder) {
	if order != SortAsc && order != SortDesc {
		return
	}
	idx := make([]int, 0, len(records))
	dated := make([]VisitRecord, 0, len(records))
	for i, rec := range records {
		if !rec.ParsedAt.IsZero() {
			idx = append(idx, i)
			dated = append(dated, rec)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		if order == SortAsc {
			return dated[i].ParsedAt.Before(dated[j].ParsedAt)
		}
		return dated[i].ParsedAt.After(dated[j].ParsedAt)
	})
	for k, i := range idx {
		records[i] = dated[k]
	}
}

func matchesSearch(rec VisitRecord, needle string) bool {
	for _, field := range []string{rec.FirstName, rec.LastName, rec.TimeSlot, rec.Symptoms, rec.Treatment} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
