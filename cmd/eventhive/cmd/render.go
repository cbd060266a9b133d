package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/Togather-Foundation/eventhive/internal/catalog"
	"github.com/Togather-Foundation/eventhive/internal/gateway"
	"github.com/Togather-Foundation/eventhive/internal/problem"
	"github.com/Togather-Foundation/eventhive/internal/sanitize"
	"github.com/Togather-Foundation/eventhive/internal/session"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"

	maxCellWidth = 40
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

// writeStructured renders v as JSON or YAML. It reports false for the table
// format so the caller can draw its own view.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// cleanEvents returns copies of events with display text sanitized.
func cleanEvents(events []catalog.EventSummary) []catalog.EventSummary {
	out := make([]catalog.EventSummary, len(events))
	for i, e := range events {
		e.Title = sanitize.Text(e.Title)
		e.Venue = sanitize.Text(e.Venue)
		e.Time = sanitize.Text(e.Time)
		e.Price = gateway.Scalar(sanitize.Text(e.Price.String()))
		e.Description = sanitize.Text(e.Description)
		e.Organizer = sanitize.Text(e.Organizer)
		out[i] = e
	}
	return out
}

func renderEvents(w io.Writer, format string, events []catalog.EventSummary, emptyMessage string) error {
	events = cleanEvents(events)
	if ok, err := writeStructured(w, format, map[string]any{"events": events}); ok {
		return err
	}

	if len(events) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render(emptyMessage))
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("TITLE", "VENUE", "DATES", "TIME", "COST", "DESCRIPTION").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, e := range events {
		dates := e.StartDate
		if e.EndDate != "" && e.EndDate != e.StartDate {
			dates += " → " + e.EndDate
		}
		cost := string(e.CostType)
		if e.Price != "" {
			cost += " (" + e.Price.String() + ")"
		}
		t.Row(
			sanitize.Truncate(sanitize.Line(e.Title), maxCellWidth),
			sanitize.Truncate(sanitize.Line(e.Venue), maxCellWidth),
			dates,
			sanitize.Line(e.Time),
			cost,
			sanitize.Truncate(sanitize.Line(e.Description), maxCellWidth),
		)
	}

	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d event(s)", len(events))))
	return err
}

func renderSuccess(w io.Writer, message string) error {
	_, err := fmt.Fprintln(w, successStyle.Render(sanitize.Line(message)))
	return err
}

// renderProblem prints a failure. A page that needs a session gets the exact
// sign-in command to run.
func renderProblem(w io.Writer, domain session.Domain, p *problem.Problem) {
	fmt.Fprintln(w, errorStyle.Render(sanitize.Line(p.Message)))
	if p.NeedsSignIn() && domain != session.None {
		fmt.Fprintln(w, hintStyle.Render(fmt.Sprintf("Sign in to continue: eventhive login --as %s", domain)))
		return
	}
	if p.Retryable {
		fmt.Fprintln(w, mutedStyle.Render("You can retry this command."))
	}
}
