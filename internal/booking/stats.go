package booking

import (
	"math"
	"time"
)

// DayCount is one zero-filled bucket of the trailing-week chart.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Stats is the dashboard aggregate payload.
type Stats struct {
	Total             int            `json:"total"`
	TimeSlotCounts    map[string]int `json:"timeSlotCounts"`
	SymptomCounts     map[string]int `json:"symptomCounts"`
	Daily             []DayCount     `json:"daily"`
	GrowthRate        float64        `json:"growthRate"`
	AvgPerActiveDay   float64        `json:"avgPerActiveDay"`
	PeakTimeSlot      string         `json:"peakTimeSlot"`
	PeakTimeSlotCount int            `json:"peakTimeSlotCount"`
	TopSymptom        string         `json:"topSymptom"`
	TopSymptomCount   int            `json:"topSymptomCount"`
}

// Compute derives every chart aggregate from the normalized record list.
// Date-bucketed figures only see records with a parseable date; the flat
// counts see everything.
func Compute(records []VisitRecord, now time.Time) Stats {
	stats := Stats{
		Total:          len(records),
		TimeSlotCounts: map[string]int{},
		SymptomCounts:  map[string]int{},
	}

	for _, rec := range records {
		slot := NotSpecified
		if rec.TimeSlot != "" && rec.TimeSlot != NotSpecified {
			slot = PeriodDisplay(rec.TimeSlot)
		}
		stats.TimeSlotCounts[slot]++
		stats.SymptomCounts[GroupSymptom(rec.Symptoms)]++
	}

	today := dayStart(now)

	// Trailing 7 days, oldest first, zero-filled.
	counts := map[string]int{}
	for _, rec := range records {
		if !rec.ParsedAt.IsZero() {
			counts[FormatDate(rec.ParsedAt)]++
		}
	}
	for i := 6; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		key := FormatDate(day)
		stats.Daily = append(stats.Daily, DayCount{Date: key, Count: counts[key]})
	}

	stats.GrowthRate = growthRate(records, today)
	stats.AvgPerActiveDay = avgPerActiveDay(records)
	stats.PeakTimeSlot, stats.PeakTimeSlotCount = peakTimeSlot(stats.TimeSlotCounts)
	stats.TopSymptom, stats.TopSymptomCount = topSymptom(stats.SymptomCounts)
	return stats
}

// growthRate compares the trailing week against the week before it, as a
// percentage rounded to one decimal.
func growthRate(records []VisitRecord, today time.Time) float64 {
	lastWeek := today.AddDate(0, 0, -7)
	twoWeeksAgo := today.AddDate(0, 0, -14)

	var current, previous int
	for _, rec := range records {
		if rec.ParsedAt.IsZero() {
			continue
		}
		day := dayStart(rec.ParsedAt)
		switch {
		case !day.Before(lastWeek) && !day.After(today):
			current++
		case !day.Before(twoWeeksAgo) && day.Before(lastWeek):
			previous++
		}
	}

	switch {
	case previous > 0:
		return math.Round(float64(current-previous)/float64(previous)*1000) / 10
	case current > 0:
		return 100
	default:
		return 0
	}
}

// avgPerActiveDay divides the total by the number of distinct days that have
// at least one dated record.
func avgPerActiveDay(records []VisitRecord) float64 {
	days := map[string]bool{}
	for _, rec := range records {
		if rec.Date != "" {
			days[rec.Date] = true
		}
	}
	if len(days) == 0 {
		return 0
	}
	return math.Round(float64(len(records))/float64(len(days))*10) / 10
}

// peakTimeSlot picks the busiest slot. The NotSpecified bucket only wins when
// no real slot has records. Ties break by schedule order so the answer does
// not depend on map iteration.
func peakTimeSlot(counts map[string]int) (string, int) {
	best, bestCount := NotSpecified, 0
	hasValid := false
	for slot, n := range counts {
		if slot != NotSpecified && n > 0 {
			hasValid = true
			break
		}
	}
	for slot, n := range counts {
		if hasValid && slot == NotSpecified {
			continue
		}
		if n > bestCount ||
			(n == bestCount && n > 0 && rankLess(periodRank(slot), slot, periodRank(best), best)) {
			best, bestCount = slot, n
		}
	}
	return best, bestCount
}

// topSymptom picks the most common bucket, ties broken by category order.
func topSymptom(counts map[string]int) (string, int) {
	best, bestCount := "ไม่มีข้อมูล", 0
	for bucket, n := range counts {
		if n > bestCount ||
			(n == bestCount && n > 0 && rankLess(symptomRank(bucket), bucket, symptomRank(best), best)) {
			best, bestCount = bucket, n
		}
	}
	return best, bestCount
}

func rankLess(rankA int, a string, rankB int, b string) bool {
	if rankA != rankB {
		return rankA < rankB
	}
	return a < b
}
