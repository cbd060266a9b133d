package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DateLayout is the wire format for a specific calendar day.
const DateLayout = "2006-01-02"

// ErrInvalidFilter is returned by the filter parsers.
var ErrInvalidFilter = errors.New("invalid filter")

// DateSelector restricts events by start date. The zero value is unset.
type DateSelector struct {
	keyword string
	day     time.Time
}

var (
	// Today selects events starting today.
	Today = DateSelector{keyword: "today"}
	// ThisWeek selects events starting within the next seven days.
	ThisWeek = DateSelector{keyword: "week"}
)

// OnDay selects events starting on the calendar day of t.
func OnDay(t time.Time) DateSelector {
	y, m, d := t.Date()
	return DateSelector{day: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// IsSet reports whether the selector restricts anything.
func (d DateSelector) IsSet() bool {
	return d.keyword != "" || !d.day.IsZero()
}

// Day returns the specific day and true, or false for keywords and unset.
func (d DateSelector) Day() (time.Time, bool) {
	return d.day, !d.day.IsZero()
}

func (d DateSelector) String() string {
	switch {
	case d.keyword != "":
		return d.keyword
	case !d.day.IsZero():
		return d.day.Format(DateLayout)
	default:
		return ""
	}
}

// ParseDateSelector accepts "today", "week", "YYYY-MM-DD", or an empty string.
func ParseDateSelector(s string) (DateSelector, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return DateSelector{}, nil
	case Today.keyword:
		return Today, nil
	case ThisWeek.keyword:
		return ThisWeek, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return DateSelector{}, fmt.Errorf("%w: date %q must be today, week or YYYY-MM-DD", ErrInvalidFilter, s)
	}
	return OnDay(t), nil
}

// ParseCostType accepts "free", "paid", or an empty string for unset.
func ParseCostType(s string) (CostType, error) {
	switch CostType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case CostFree:
		return CostFree, nil
	case CostPaid:
		return CostPaid, nil
	default:
		return "", fmt.Errorf("%w: type %q must be free or paid", ErrInvalidFilter, s)
	}
}

// FilterSet is the immutable set of catalog filters. Zero fields are unset.
type FilterSet struct {
	Type     CostType
	Location string
	Date     DateSelector
}

// Query encodes the set filters as query parameters, omitting unset ones.
func (f FilterSet) Query() url.Values {
	q := url.Values{}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		q.Set("location", loc)
	}
	if f.Date.IsSet() {
		q.Set("date", f.Date.String())
	}
	return q
}

// IsZero reports whether no filter is set.
func (f FilterSet) IsZero() bool {
	return len(f.Query()) == 0
}
