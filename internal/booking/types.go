package booking

import "time"

// VisitRecord is the canonical in-memory shape of one nurse-visit entry,
// after the upstream's inconsistent field names have been resolved.
type VisitRecord struct {
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	TimeSlot  string    `json:"timeSlot"`
	Date      string    `json:"date"`
	Symptoms  string    `json:"symptoms"`
	Treatment string    `json:"treatment"`
	ParsedAt  time.Time `json:"-"`
}

// ImageUpload carries an optional attached photo through the submission
// pipeline.
type ImageUpload struct {
	Data        []byte
	Filename    string
	ContentType string
	Size        int64
}

// Submission is a new visit record as collected by the booking form.
type Submission struct {
	Date      string
	Period    string
	StudentID string
	Grade     string
	Prefix    string
	FirstName string
	LastName  string
	Symptoms  string
	Treatment string
	Email     string
	Image     *ImageUpload
}
