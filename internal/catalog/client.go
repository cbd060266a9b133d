package catalog

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventhive/internal/gateway"
	"github.com/Togather-Foundation/eventhive/internal/metrics"
	"github.com/Togather-Foundation/eventhive/internal/problem"
	"github.com/Togather-Foundation/eventhive/internal/session"
)

const (
	UserDashboardPath  = "/api/user/dashboard/"
	AdminDashboardPath = "/api/admin/dashboard/"
)

// Status is the fetch state machine position.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusLoading       Status = "loading"
	StatusLoaded        Status = "loaded"
	StatusFailed        Status = "failed"
	StatusLoginRequired Status = "login_required"
)

// State is a snapshot of the catalog. Events is only meaningful when Loaded,
// Problem only when Failed or LoginRequired.
type State struct {
	Status     Status
	Filters    FilterSet
	Events     []EventSummary
	Problem    *problem.Problem
	Generation uint64
}

// Empty reports a successful fetch that matched no events.
func (s State) Empty() bool {
	return s.Status == StatusLoaded && len(s.Events) == 0
}

// Client fetches one listing endpoint. Only the most recently started fetch
// may commit its result; older responses are dropped when they arrive.
type Client struct {
	gw       gateway.Doer
	domain   session.Domain
	path     string
	filtered bool
	logger   zerolog.Logger

	// notifyMu serializes commit+notify so observers see transitions in order.
	notifyMu   sync.Mutex
	mu         sync.Mutex
	generation uint64
	state      State
	observers  []func(State)
}

// NewUserCatalog returns the filtered catalog served to signed-in users.
func NewUserCatalog(gw gateway.Doer, logger zerolog.Logger) *Client {
	return newClient(gw, session.User, UserDashboardPath, true, logger)
}

// NewAdminDashboard returns the admin's own event list. Filters are ignored.
func NewAdminDashboard(gw gateway.Doer, logger zerolog.Logger) *Client {
	return newClient(gw, session.Admin, AdminDashboardPath, false, logger)
}

func newClient(gw gateway.Doer, domain session.Domain, path string, filtered bool, logger zerolog.Logger) *Client {
	return &Client{
		gw:       gw,
		domain:   domain,
		path:     path,
		filtered: filtered,
		logger:   logger.With().Str("component", "catalog").Str("domain", domain.String()).Logger(),
		state:    State{Status: StatusIdle},
	}
}

// Domain is the identity domain this listing requires.
func (c *Client) Domain() session.Domain {
	return c.domain
}

// OnChange registers fn to be called after every state transition. fn must
// not call Fetch.
func (c *Client) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Current returns the latest committed state.
func (c *Client) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Fetch moves to Loading, issues one request with filters, and commits the
// outcome if no newer Fetch has started meanwhile. It returns the state that
// is current when it finishes, which belongs to the newer fetch if this one
// was superseded.
func (c *Client) Fetch(ctx context.Context, filters FilterSet) State {
	if !c.filtered {
		filters = FilterSet{}
	}

	c.notifyMu.Lock()
	c.mu.Lock()
	c.generation++
	gen := c.generation
	loading := State{Status: StatusLoading, Filters: filters, Generation: gen}
	c.state = loading
	observers := c.observers
	c.mu.Unlock()
	notify(observers, loading)
	c.notifyMu.Unlock()

	var resp listResponse
	err := c.gw.Do(ctx, gateway.Request{
		Domain: c.domain,
		Method: http.MethodGet,
		Path:   c.path,
		Query:  filters.Query(),
	}, &resp)

	next := State{Filters: filters, Generation: gen}
	if err != nil {
		next.Problem = problem.Normalize(err)
		next.Status = StatusFailed
		if next.Problem.NeedsSignIn() {
			next.Status = StatusLoginRequired
		}
	} else {
		next.Status = StatusLoaded
		next.Events = resp.Events
		if next.Events == nil {
			next.Events = []EventSummary{}
		}
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Lock()
	if gen != c.generation {
		current := c.state
		c.mu.Unlock()
		metrics.CatalogStaleResultsTotal.Inc()
		c.logger.Debug().Uint64("generation", gen).Uint64("current", current.Generation).Msg("discarding superseded catalog response")
		return current
	}
	c.state = next
	observers = c.observers
	c.mu.Unlock()

	if next.Problem != nil {
		c.logger.Debug().Str("kind", string(next.Problem.Kind)).Str("status", string(next.Status)).Msg("catalog fetch failed")
	} else {
		c.logger.Debug().Int("events", len(next.Events)).Msg("catalog loaded")
	}
	notify(observers, next)
	return next
}

func notify(observers []func(State), s State) {
	for _, fn := range observers {
		fn(s)
	}
}
