package booking

// Period maps a named class period to its clock-time range. This table is the
// single source of truth; the page variants it replaces had drifted apart.
// The enumeration the submission form writes into new records is the
// authoritative one.
type Period struct {
	Display string `json:"display"`
	Value   string `json:"value"`
}

// Periods lists the class periods in schedule order.
var Periods = []Period{
	{Display: "คาบ 0", Value: "07:30-08:00"},
	{Display: "คาบ 1", Value: "08:30-09:30"},
	{Display: "คาบ 2", Value: "09:30-10:30"},
	{Display: "คาบ 3", Value: "10:30-11:30"},
	{Display: "คาบ 4", Value: "11:30-12:30"},
	{Display: "คาบ 5", Value: "12:30-13:30"},
	{Display: "คาบ 6", Value: "13:30-14:30"},
	{Display: "คาบ 7", Value: "14:30-15:30"},
	{Display: "คาบ 8", Value: "15:30-16:30"},
}

// PeriodDisplay resolves a raw slot value to its display label. Historical
// records may carry ranges from older timetables; those display verbatim.
func PeriodDisplay(value string) string {
	for _, p := range Periods {
		if p.Value == value {
			return p.Display
		}
	}
	return value
}

// periodRank orders display labels for deterministic tie-breaking: known
// periods by schedule order, everything else after them.
func periodRank(display string) int {
	for i, p := range Periods {
		if p.Display == display {
			return i
		}
	}
	return len(Periods)
}
