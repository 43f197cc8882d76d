package booking

import "strings"

// symptomRules classify free-text symptoms into buckets by ordered substring
// containment; the first matching rule wins. This is deliberately a flat
// first-match scan, not a taxonomy: a string containing two keywords resolves
// by rule order.
var symptomRules = []struct {
	keywords []string
	bucket   string
}{
	{[]string{"เวียนหัว", "ปวดหัว"}, "ปวด/เวียนศีรษะ"},
	{[]string{"บาดเจ็บ", "กีฬา"}, "บาดเจ็บ/อุบัติเหตุ"},
	{[]string{"ไข้"}, "ไข้/ไม่สบาย"},
	{[]string{"ไอ", "เจ็บคอ"}, "ไอ/เจ็บคอ"},
	{[]string{"ท้องเสีย", "ปวดท้อง"}, "ปวดท้อง/ท้องเสีย"},
	{[]string{"คลื่นไส้", "อาเจียน"}, "คลื่นไส้/อาเจียน"},
	{[]string{"ปวดท้องประจำเดือน"}, "ปวดท้องประจำเดือน"},
	{[]string{"เป็นลม"}, "เป็นลม"},
	{[]string{"ท้องผูก"}, "ท้องผูก"},
	{[]string{"ปวดฟัน"}, "ปวดฟัน"},
	{[]string{"ปวดหู"}, "ปวดหู"},
	{[]string{"ปวดหลัง"}, "ปวดหลัง"},
	{[]string{"ปวดข้อ"}, "ปวดข้อ"},
	{[]string{"แผล", "เลือดออก"}, "แผล/เลือดออก"},
	{[]string{"หายใจลำบาก"}, "หายใจลำบาก"},
	{[]string{"แพ้", "ผื่นคัน"}, "แพ้/ผื่นคัน"},
	{[]string{"ปวดตา", "สายตา"}, "ปวดตา/สายตา"},
	{[]string{"เครียด", "วิตกกังวล"}, "เครียด/วิตกกังวล"},
}

// SymptomCategories lists the chart buckets in their fixed display order.
var SymptomCategories = []string{
	"ปวด/เวียนศีรษะ",
	"ไข้/ไม่สบาย",
	"ปวดท้อง/ท้องเสีย",
	"ปวดท้องประจำเดือน",
	"ไอ/เจ็บคอ",
	"บาดเจ็บ/อุบัติเหตุ",
	"เป็นลม",
	"คลื่นไส้/อาเจียน",
	"ท้องผูก",
	"ปวดฟัน",
	"ปวดหู",
	"ปวดหลัง",
	"ปวดข้อ",
	"แผล/เลือดออก",
	"หายใจลำบาก",
	"แพ้/ผื่นคัน",
	"ปวดตา/สายตา",
	"เครียด/วิตกกังวล",
	"อื่นๆ",
}

// GroupSymptom maps free text to a category bucket. Unmatched text is kept
// verbatim so rare complaints still surface in counts.
func GroupSymptom(symptom string) string {
	if symptom == "" || symptom == "N/A" || symptom == NotSpecified {
		return NotSpecified
	}
	s := strings.TrimSpace(symptom)
	for _, rule := range symptomRules {
		for _, kw := range rule.keywords {
			if strings.Contains(s, kw) {
				return rule.bucket
			}
		}
	}
	return s
}

// GroupSymptomOther is GroupSymptom with unmatched text folded into the
// "other" bucket, for views that only show the fixed category list.
func GroupSymptomOther(symptom string) string {
	bucket := GroupSymptom(symptom)
	if bucket == NotSpecified {
		return bucket
	}
	for _, rule := range symptomRules {
		if rule.bucket == bucket {
			return bucket
		}
	}
	return "อื่นๆ"
}

// symptomRank orders buckets for deterministic tie-breaking: fixed categories
// first in list order, verbatim leftovers after them.
func symptomRank(bucket string) int {
	for i, c := range SymptomCategories {
		if c == bucket {
			return i
		}
	}
	return len(SymptomCategories)
}
