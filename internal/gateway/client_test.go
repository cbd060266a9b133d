package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventhive/internal/metrics"
	"github.com/Togather-Foundation/eventhive/internal/session"
)

func newStore(t *testing.T, tokens map[session.Domain]string) *session.Store {
	t.Helper()
	store := session.NewStore(session.NewMemoryBackend(), zerolog.Nop())
	for d, token := range tokens {
		require.NoError(t, store.Save(context.Background(), d, token))
	}
	return store
}

func TestClient_AttachesDomainToken(t *testing.T) {
	var gotAuth, gotRequestID, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(RequestIDHeader)
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[]}`))
	}))
	defer server.Close()

	store := newStore(t, map[session.Domain]string{
		session.Admin: "admin-token",
		session.User:  "user-token",
	})
	client := NewClient(server.URL, store)

	var out struct {
		Events []json.RawMessage `json:"events"`
	}
	require.NoError(t, client.Do(context.Background(), Request{Domain: session.User, Method: http.MethodGet, Path: "/api/user/dashboard/"}, &out))
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Len(t, gotRequestID, 26, "ULID request id")
	assert.Equal(t, "application/json", gotAccept)

	require.NoError(t, client.Do(context.Background(), Request{Domain: session.Admin, Method: http.MethodGet, Path: "/api/admin/dashboard/"}, nil))
	assert.Equal(t, "Bearer admin-token", gotAuth)

	require.NoError(t, client.Do(context.Background(), Request{Domain: session.None, Method: http.MethodPost, Path: "/api/user/login/", JSON: map[string]string{}}, nil))
	assert.Empty(t, gotAuth, "no credential for unauthenticated requests")
}

func TestClient_NoSessionFailsFast(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, newStore(t, nil))
	err := client.Do(context.Background(), Request{Domain: session.User, Method: http.MethodGet, Path: "/api/user/dashboard/"}, nil)

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindUnauthenticated, gwErr.Kind)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, gwErr.Dispatched())
	assert.Zero(t, hits.Load(), "no request may be dispatched without a session")
}

func TestClient_UnauthorizedClearsOnlyThatDomain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Token expired"}`))
	}))
	defer server.Close()

	ctx := context.Background()
	store := newStore(t, map[session.Domain]string{
		session.Admin: "admin-token",
		session.User:  "user-token",
	})
	client := NewClient(server.URL, store)

	err := client.Do(ctx, Request{Domain: session.Admin, Method: http.MethodGet, Path: "/api/admin/dashboard/"}, nil)

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindUnauthenticated, gwErr.Kind)
	assert.Equal(t, "Token expired", gwErr.Message)
	assert.True(t, gwErr.Dispatched())

	_, ok := store.Get(ctx, session.Admin)
	assert.False(t, ok, "admin session cleared")
	token, ok := store.Get(ctx, session.User)
	assert.True(t, ok, "user session untouched")
	assert.Equal(t, "user-token", token)
}

func TestClient_UnauthorizedResetsActiveSessionGauge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := newStore(t, map[session.Domain]string{session.User: "user-token"})
	gauge := metrics.SessionsActive.WithLabelValues(session.User.String())
	gauge.Set(1)

	err := NewClient(server.URL, store).Do(context.Background(), Request{Domain: session.User, Method: http.MethodGet, Path: "/api/user/dashboard/"}, nil)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
}

func TestClient_LateUnauthorizedKeepsNewerSession(t *testing.T) {
	arrived := make(chan string, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- r.Header.Get("Authorization")
		<-release
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Token expired"}`))
	}))
	defer server.Close()

	ctx := context.Background()
	store := newStore(t, map[session.Domain]string{session.User: "old-token"})
	client := NewClient(server.URL, store)

	done := make(chan error, 1)
	go func() {
		done <- client.Do(ctx, Request{Domain: session.User, Method: http.MethodGet, Path: "/api/user/dashboard/"}, nil)
	}()

	assert.Equal(t, "Bearer old-token", <-arrived)
	require.NoError(t, store.Save(ctx, session.User, "fresh-token"))
	close(release)

	err := <-done
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	token, ok := store.Get(ctx, session.User)
	require.True(t, ok, "a sign-in during the request must survive its 401")
	assert.Equal(t, "fresh-token", token)
}

func TestWithTimeout_AppliesToPrivateCopy(t *testing.T) {
	shared := &http.Client{}
	store := newStore(t, nil)

	after := NewClient("http://example.test", store, WithHTTPClient(shared), WithTimeout(time.Second))
	assert.Equal(t, time.Second, after.httpClient.Timeout)
	assert.NotSame(t, shared, after.httpClient)

	before := NewClient("http://example.test", store, WithTimeout(2*time.Second), WithHTTPClient(shared))
	assert.Equal(t, 2*time.Second, before.httpClient.Timeout, "order of options must not matter")

	assert.Zero(t, shared.Timeout, "the caller's client is never modified")

	unbounded := NewClient("http://example.test", store, WithHTTPClient(shared))
	assert.Same(t, shared, unbounded.httpClient)
}

func TestClient_UnauthorizedWithoutDomainKeepsSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
	}))
	defer server.Close()

	ctx := context.Background()
	store := newStore(t, map[session.Domain]string{session.User: "user-token"})
	client := NewClient(server.URL, store)

	err := client.Do(ctx, Request{Method: http.MethodPost, Path: "/api/user/login/", JSON: map[string]string{"email": "a@b.c"}}, nil)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	_, ok := store.Get(ctx, session.User)
	assert.True(t, ok)
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    Kind
		wantMessage string
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"Admins only"}`, wantKind: KindForbidden, wantMessage: "Admins only"},
		{name: "not found", status: http.StatusNotFound, body: `<html>nope</html>`, wantKind: KindNotFound},
		{name: "internal error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, wantKind: KindServerError, wantMessage: "boom"},
		{name: "bad gateway", status: http.StatusBadGateway, wantKind: KindServerError},
		{name: "validation", status: http.StatusBadRequest, body: `{"error":"Title is required and must be 50 chars or less"}`, wantKind: KindRejected, wantMessage: "Title is required and must be 50 chars or less"},
		{name: "method not allowed", status: http.StatusMethodNotAllowed, body: `{"error":"Invalid request method"}`, wantKind: KindRejected, wantMessage: "Invalid request method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, newStore(t, map[session.Domain]string{session.User: "t"}))
			err := client.Do(context.Background(), Request{Domain: session.User, Method: http.MethodGet, Path: "/x"}, nil)

			var gwErr *Error
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tt.wantKind, gwErr.Kind)
			assert.Equal(t, tt.status, gwErr.Status)
			assert.Equal(t, tt.wantMessage, gwErr.Message)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewClient(baseURL, newStore(t, nil))
	err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/user/login/"}, nil)

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindNetworkError, gwErr.Kind)
	assert.Zero(t, gwErr.Status)
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, newStore(t, nil))
	var out map[string]any
	err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, &out)
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestClient_EncodesJSONAndQuery(t *testing.T) {
	var gotBody map[string]string
	var gotQuery url.Values
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"token":"abc"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", newStore(t, nil), WithRateLimit(100))
	var out struct {
		Token string `json:"token"`
	}
	err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "api/user/login/",
		Query:  url.Values{"location": {"Hall A"}},
		JSON:   map[string]string{"email": "a@example.com"},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "abc", out.Token)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "a@example.com", gotBody["email"])
	assert.Equal(t, "Hall A", gotQuery.Get("location"))
}

func TestClient_CancelledContextIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, newStore(t, nil))
	err := client.Do(ctx, Request{Method: http.MethodGet, Path: "/"}, nil)
	assert.Equal(t, KindNetworkError, KindOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestKindOf_NonGatewayError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
