// Package catalog fetches event listings for the user catalog and the admin
// dashboard and tracks each fetch through a small state machine.
package catalog

import "github.com/Togather-Foundation/eventhive/internal/gateway"

// CostType is the free/paid classification of an event.
type CostType string

const (
	CostFree CostType = "free"
	CostPaid CostType = "paid"
)

// EventSummary is the read-only listing shape returned by both dashboards.
type EventSummary struct {
	ID          gateway.Scalar `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string         `json:"title" yaml:"title"`
	Venue       string         `json:"venue" yaml:"venue"`
	StartDate   string         `json:"start_date" yaml:"start_date"`
	EndDate     string         `json:"end_date" yaml:"end_date"`
	Time        string         `json:"time" yaml:"time"`
	CostType    CostType       `json:"cost_type" yaml:"cost_type"`
	Price       gateway.Scalar `json:"price,omitempty" yaml:"price,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	// Image is a data URI or URL; omitted from CLI output.
	Image     string `json:"image,omitempty" yaml:"-"`
	Organizer string `json:"organizer,omitempty" yaml:"organizer,omitempty"`
}

// listResponse covers both /api/user/dashboard/ and /api/admin/dashboard/.
type listResponse struct {
	Message string         `json:"message"`
	Events  []EventSummary `json:"events"`
}
