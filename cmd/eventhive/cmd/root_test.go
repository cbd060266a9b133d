package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventhive/internal/catalog"
	"github.com/Togather-Foundation/eventhive/internal/testutil/fakeapi"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the CLI in-process against a temp sqlite session file.
func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func setupEnv(t *testing.T, baseURL string) string {
	t.Helper()
	sessionPath := filepath.Join(t.TempDir(), "session.db")
	t.Setenv("EVENTHIVE_API_BASE_URL", baseURL)
	t.Setenv("EVENTHIVE_SESSION_BACKEND", "sqlite")
	t.Setenv("EVENTHIVE_SESSION_PATH", sessionPath)
	t.Setenv("EVENTHIVE_LOGGING_LEVEL", "error")
	t.Setenv("EVENTHIVE_TRACING_ENABLED", "false")
	return sessionPath
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedOutput string
		expectError    bool
	}{
		{name: "help flag", args: []string{"--help"}, expectedOutput: "command-line client for the Event Hive platform"},
		{name: "short help flag", args: []string{"-h"}, expectedOutput: "command-line client for the Event Hive platform"},
		{name: "invalid flag", args: []string{"--invalid-flag"}, expectedOutput: "unknown flag: --invalid-flag", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			if tt.expectError {
				assert.Error(t, res.err)
			} else {
				assert.NoError(t, res.err)
			}
			assert.Contains(t, res.stdout+res.stderr, tt.expectedOutput)
		})
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	root := newRootCommand(&app{opts: &globalOptions{}})
	for _, name := range []string{"login", "signup", "logout", "whoami", "events", "dashboard", "describe", "create-event", "version"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, found.Name())
	}
	for _, flag := range []string{"config", "log-level", "log-format", "base-url", "format", "metrics-file"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	defer func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	}()
	Version = "1.0.0"
	GitCommit = "abc123"
	BuildDate = "2026-01-27T12:00:00Z"

	// No API or session configuration is needed.
	t.Setenv("EVENTHIVE_SESSION_BACKEND", "bogus")
	res := runCLI(t, "", "version")
	require.NoError(t, res.err)
	for _, expected := range []string{"Event Hive CLI", "Version:    1.0.0", "Git commit: abc123", "Build date: 2026-01-27T12:00:00Z", "Go version:"} {
		assert.Contains(t, res.stdout, expected)
	}
}

func TestEvents_LoginPromptWithoutSession(t *testing.T) {
	api := fakeapi.New()
	defer api.Close()
	setupEnv(t, api.URL)

	res := runCLI(t, "", "events", "--type", "free")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Session expired. Please sign in again.")
	assert.Contains(t, res.stderr, "eventhive login --as user")
	assert.Zero(t, api.Hits(catalog.UserDashboardPath), "no request without a session")
}

func TestUserFlow_LoginBrowseLogout(t *testing.T) {
	api := fakeapi.New()
	defer api.Close()
	setupEnv(t, api.URL)

	api.AddUser("asha@example.com", "password123")
	today := time.Now().Format("2006-01-02")
	api.AddEvent(fakeapi.Event{Title: "Picnic <b>Party</b>", Venue: "City Park", StartDate: today, EndDate: today, Time: "10:00 - 12:00", CostType: "free"})
	api.AddEvent(fakeapi.Event{Title: "Gala", Venue: "Opera House", StartDate: "2099-01-01", EndDate: "2099-01-01", Time: "19:00 - 23:00", CostType: "paid"})

	res := runCLI(t, "password123\n", "login", "--as", "user", "--email", "asha@example.com", "--password-stdin")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Signed in as asha@example.com (user).")

	// The session survives into a new process via the sqlite file.
	res = runCLI(t, "", "events", "--type", "free", "--date", "today")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Picnic Party")
	assert.NotContains(t, res.stdout, "<b>")
	assert.NotContains(t, res.stdout, "Gala")
	assert.Contains(t, res.stdout, "1 event(s)")

	res = runCLI(t, "", "events", "--location", "nowhere")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "No events match these filters.")

	res = runCLI(t, "", "events", "-o", "json", "--type", "paid")
	require.NoError(t, res.err, res.stderr)
	var payload struct {
		Events []catalog.EventSummary `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &payload))
	require.Len(t, payload.Events, 1)
	assert.Equal(t, catalog.CostPaid, payload.Events[0].CostType)

	res = runCLI(t, "", "logout", "--as", "user")
	require.NoError(t, res.err, res.stderr)

	res = runCLI(t, "", "events")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "eventhive login --as user")
}

func TestAdminFlow_CreateEventAndDashboard(t *testing.T) {
	api := fakeapi.New()
	defer api.Close()
	setupEnv(t, api.URL)
	api.AddAdmin("ravi@example.com", "password123")

	imagePath := filepath.Join(t.TempDir(), "poster.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600))

	draft := []string{
		"--title", "Spring Fair", "--venue", "City Park",
		"--start-date", "2026-04-01", "--end-date", "2026-04-02",
		"--start-time", "10:00", "--end-time", "12:00", "--cost", "0",
	}

	res := runCLI(t, "", append([]string{"create-event", "--image", imagePath}, draft...)...)
	require.Error(t, res.err, "no admin session yet")
	assert.Contains(t, res.stderr, "eventhive login --as admin")

	res = runCLI(t, "", "login", "--as", "admin", "--email", "ravi@example.com", "--password", "password123")
	require.NoError(t, res.err, res.stderr)

	res = runCLI(t, "", append([]string{"describe", "-o", "json"}, draft...)...)
	require.NoError(t, res.err, res.stderr)
	var described describeView
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &described))
	assert.Equal(t, "free", described.CostType)
	assert.Equal(t, "10:00 - 12:00", described.Time)
	assert.Contains(t, described.Description, "Spring Fair")

	res = runCLI(t, "", append([]string{"create-event"}, draft...)...)
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Please upload an event image.")
	assert.Zero(t, api.Hits("/api/admin/events/"))

	res = runCLI(t, "", append([]string{"create-event", "--image", imagePath, "--generate-description", "--idempotent"}, draft...)...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Event created successfully")
	assert.Contains(t, res.stdout, "Idempotency key:")

	events := api.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "10:00 - 12:00", events[0].Time)
	assert.Equal(t, "free", events[0].CostType)
	assert.NotEmpty(t, events[0].Description)

	res = runCLI(t, "", "dashboard")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Spring Fair")

	res = runCLI(t, "", "whoami", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	var views []identityView
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &views))
	require.Len(t, views, 2)
	assert.True(t, views[0].SignedIn)
	assert.Equal(t, "ravi@example.com", views[0].Label)
	assert.False(t, views[1].SignedIn)
	assert.Equal(t, "User", views[1].Label)
}

func TestDescribe_IncompleteDraft(t *testing.T) {
	api := fakeapi.New()
	defer api.Close()
	setupEnv(t, api.URL)

	res := runCLI(t, "", "describe", "--title", "Spring Fair")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Please fill in all required fields")
	assert.Zero(t, api.Hits("/api/admin/generate-description/"))
}

func TestMetricsFile(t *testing.T) {
	api := fakeapi.New()
	defer api.Close()
	setupEnv(t, api.URL)

	path := filepath.Join(t.TempDir(), "eventhive.prom")
	res := runCLI(t, "", "--metrics-file", path, "events")
	require.Error(t, res.err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `eventhive_gateway_requests_total{domain="user",method="GET",outcome="no_session"}`)
	assert.Contains(t, string(data), `eventhive_sessions_active{domain="user"} 0`)
}

func TestInvalidFormat(t *testing.T) {
	api := fakeapi.New()
	defer api.Close()
	setupEnv(t, api.URL)

	res := runCLI(t, "", "whoami", "-o", "xml")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "unknown output format")
}

func TestParseFilters(t *testing.T) {
	f, err := parseFilters("paid", "Hall", "week")
	require.NoError(t, err)
	assert.Equal(t, "date=week&location=Hall&type=paid", f.Query().Encode())

	f, err = parseFilters("", "", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", f.Date.String())

	f, err = parseFilters("", "", "2 March 2026")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", f.Date.String())

	_, err = parseFilters("cheap", "", "")
	assert.ErrorIs(t, err, catalog.ErrInvalidFilter)
}
