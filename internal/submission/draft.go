// Package submission turns an admin's event draft into a created event: an
// optional AI-written description request followed by a multipart upload.
package submission

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CostType values sent on the wire.
const (
	CostFree = "free"
	CostPaid = "paid"
)

// Draft is the mutable form state of an event being created.
type Draft struct {
	Title       string `json:"title" validate:"notblank"`
	Venue       string `json:"venue" validate:"notblank"`
	StartDate   string `json:"start_date" validate:"notblank"`
	EndDate     string `json:"end_date" validate:"notblank"`
	StartTime   string `json:"start_time" validate:"notblank"`
	EndTime     string `json:"end_time" validate:"notblank"`
	Cost        string `json:"cost"`
	Description string `json:"description"`
	Image       *Image `json:"-"`
	// IdempotencyKey, when set, is sent with Submit so a retried upload is not
	// recorded twice by servers that honour it.
	IdempotencyKey string `json:"-"`
}

// CostType derives free/paid from Cost.
func (d *Draft) CostType() string {
	return CostTypeFor(d.Cost)
}

// TimeRange joins the start and end times as "<start> - <end>".
func (d *Draft) TimeRange() string {
	return fmt.Sprintf("%s - %s", strings.TrimSpace(d.StartTime), strings.TrimSpace(d.EndTime))
}

// CostTypeFor returns "paid" when cost parses as a number greater than zero
// and "free" otherwise, including unparsable and negative input.
func CostTypeFor(cost string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(cost), 64)
	if err != nil || !(v > 0) {
		return CostFree
	}
	return CostPaid
}

// NewIdempotencyKey returns a fresh key for Draft.IdempotencyKey.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// Image is the event image attached to a submission.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LoadImage reads an image file from disk.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &Image{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}
