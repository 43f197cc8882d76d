package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/shrimpsizemoose/trekker/logger"

	"medreserve/internal/metrics"
	"medreserve/internal/script"
)

// MaxImageSize bounds attached photos to 5 MB.
const MaxImageSize = 5 * 1024 * 1024

// NoImage is the literal the sheet stores when no photo was attached.
const NoImage = "No image provided"

// ErrStorageNotConfigured means a photo was attached but no Drive credentials
// are set.
var ErrStorageNotConfigured = errors.New("image storage not configured")

// ValidationError is a locally-detected bad submission; handlers map it to a
// 400 with the message as-is. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var studentIDPattern = regexp.MustCompile(`^\d+$`)

// requiredFields fixes the check order; the 400 names exactly the first
// missing one.
var requiredFields = []struct {
	name string
	get  func(Submission) string
}{
	{"date", func(s Submission) string { return s.Date }},
	{"period", func(s Submission) string { return s.Period }},
	{"studentId", func(s Submission) string { return s.StudentID }},
	{"grade", func(s Submission) string { return s.Grade }},
	{"prefix", func(s Submission) string { return s.Prefix }},
	{"firstName", func(s Submission) string { return s.FirstName }},
	{"lastName", func(s Submission) string { return s.LastName }},
	{"symptoms", func(s Submission) string { return s.Symptoms }},
	{"treatment", func(s Submission) string { return s.Treatment }},
}

// Uploader stores an image and returns its shareable link.
type Uploader interface {
	UploadImage(ctx context.Context, data []byte, filename, contentType string) (link string, err error)
}

// SubmitClient is the slice of the script client the service needs.
type SubmitClient interface {
	SubmitJSON(ctx context.Context, payload any) (*script.Result, error)
}

// Service runs the submission pipeline: image checks, Drive upload, required
// field validation, defaulting, and the forward to the script.
type Service struct {
	script   SubmitClient
	uploader Uploader
}

// NewService creates a service; uploader may be nil when Drive is not
// configured, which rejects submissions that attach a photo.
func NewService(scriptClient SubmitClient, uploader Uploader) *Service {
	return &Service{script: scriptClient, uploader: uploader}
}

// Submit validates and forwards one booking. The image is checked before any
// storage call is made; the upload and its permission grant run before the
// text fields are checked, matching the historical pipeline order.
func (s *Service) Submit(ctx context.Context, sub Submission) (*script.Result, error) {
	imageLink := NoImage

	if sub.Image != nil {
		if !allowedImageTypes[sub.Image.ContentType] {
			return nil, &ValidationError{Field: "image", Message: "กรุณาอัปโหลดไฟล์ภาพ (.jpg หรือ .png เท่านั้น)"}
		}
		if sub.Image.Size > MaxImageSize {
			return nil, &ValidationError{Field: "image", Message: "ไฟล์ภาพต้องมีขนาดไม่เกิน 5MB"}
		}
		if s.uploader == nil {
			return nil, ErrStorageNotConfigured
		}
		link, err := s.uploader.UploadImage(ctx, sub.Image.Data, sub.Image.Filename, sub.Image.ContentType)
		if err != nil {
			return nil, fmt.Errorf("image upload failed: %w", err)
		}
		imageLink = link
		metrics.ImageUploadBytes.Observe(float64(sub.Image.Size))
	}

	for _, field := range requiredFields {
		if field.get(sub) == "" {
			return nil, &ValidationError{Field: field.name, Message: "Missing required field: " + field.name}
		}
	}
	if !studentIDPattern.MatchString(sub.StudentID) {
		return nil, &ValidationError{Field: "studentId", Message: "รหัสนักเรียนต้องเป็นตัวเลขเท่านั้น"}
	}

	payload := map[string]string{
		"date":      sub.Date,
		"period":    sub.Period,
		"studentId": sub.StudentID,
		"grade":     sub.Grade,
		"prefix":    sub.Prefix,
		"firstName": sub.FirstName,
		"lastName":  sub.LastName,
		"symptoms":  sub.Symptoms,
		"treatment": sub.Treatment,
		"email":     orNA(sub.Email),
		"imageLink": imageLink,
	}

	logger.Debug.Printf("forwarding booking for student %s (%s)", sub.StudentID, sub.Period)
	return s.script.SubmitJSON(ctx, payload)
}

// orNA fills absent optional fields with the literal the sheet expects.
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
