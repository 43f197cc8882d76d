package booking

import (
	"fmt"
	"strings"
	"time"
)

// NotSpecified is the explicit placeholder for fields missing under every
// known alias. Grouping always has a bucket; nothing is ever omitted.
const NotSpecified = "ไม่ระบุ"

// The script has written the same logical fields under several names over
// time: English keys, Thai sheet-column headers, and at least one misspelling.
// First present non-empty alias wins.
var (
	timeSlotAliases  = []string{"timeSlot", "คาบที่เรียน", "คาบเรียนที่", "period"}
	symptomAliases   = []string{"symptoms", "symptome", "อาการ"}
	dateAliases      = []string{"date", "วันที่เลือก"}
	firstNameAliases = []string{"firstName", "ชื่อ"}
	lastNameAliases  = []string{"lastName", "นามสกุล"}
	treatmentAliases = []string{"treatment", "การรักษา"}
)

// bangkok is the single fixed zone for all day-boundary computations.
var bangkok = loadBangkok()

func loadBangkok() *time.Location {
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		return time.FixedZone("ICT", 7*3600)
	}
	return loc
}

// Normalize reconciles one raw upstream record into a VisitRecord. Time slot
// and symptoms fall back to the NotSpecified placeholder; an unparseable date
// yields an empty date string and a zero ParsedAt, which keeps the record in
// flat lists but out of date-bucketed aggregates.
func Normalize(raw map[string]any) VisitRecord {
	rec := VisitRecord{
		FirstName: firstAlias(raw, firstNameAliases),
		LastName:  firstAlias(raw, lastNameAliases),
		TimeSlot:  firstAlias(raw, timeSlotAliases),
		Symptoms:  firstAlias(raw, symptomAliases),
		Treatment: firstAlias(raw, treatmentAliases),
	}
	if rec.TimeSlot == "" {
		rec.TimeSlot = NotSpecified
	}
	if rec.Symptoms == "" {
		rec.Symptoms = NotSpecified
	}

	if parsed, ok := ParseDate(firstAlias(raw, dateAliases)); ok {
		rec.ParsedAt = parsed
		rec.Date = FormatDate(parsed)
	}
	return rec
}

// NormalizeAll maps a raw upstream list into canonical records.
func NormalizeAll(raws []map[string]any) []VisitRecord {
	records := make([]VisitRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, Normalize(raw))
	}
	return records
}

// firstAlias picks the first present non-empty value among the alias keys.
func firstAlias(raw map[string]any, keys []string) string {
	for _, key := range keys {
		val, ok := raw[key]
		if !ok || val == nil {
			continue
		}
		s, isStr := val.(string)
		if !isStr {
			s = fmt.Sprint(val)
		}
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return ""
}

var dateLayouts = []string{
	"02/01/2006", // Thai form shown in the sheets
	"2006-01-02", // bare ISO date from the form input
}

// ParseDate accepts the three date shapes observed upstream: a full
// timestamp, DD/MM/YYYY, and YYYY-MM-DD. The result is anchored in the
// Bangkok zone.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.In(bangkok), true
		}
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, bangkok); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, bangkok); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders the canonical DD/MM/YYYY display form.
func FormatDate(t time.Time) string {
	return t.In(bangkok).Format("02/01/2006")
}

// dayStart truncates to midnight Bangkok time.
func dayStart(t time.Time) time.Time {
	t = t.In(bangkok)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, bangkok)
}
