// Package fakeapi is an in-process stand-in for the Event Hive backend used
// by tests. It mints real HS256 tokens and enforces the same status codes and
// {"error": "..."} bodies as the production API.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	maxImageBytes = 5 << 20
)

// Event is an event as stored by the fake backend.
type Event struct {
	Title       string `json:"title"`
	Venue       string `json:"venue"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Time        string `json:"time"`
	CostType    string `json:"cost_type"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

type account struct {
	name     string
	password string
}

// Server is a running fake backend. Close it when done.
type Server struct {
	*httptest.Server

	secret []byte
	now    func() time.Time
	ttl    time.Duration

	mu          sync.Mutex
	admins      map[string]account
	users       map[string]account
	events      []Event
	idempotency map[string]bool
	hits        map[string]int
}

type claimsKey struct{}

// New starts a fake backend.
func New() *Server {
	s := &Server{
		secret:      []byte("fakeapi-secret"),
		now:         time.Now,
		ttl:         24 * time.Hour,
		admins:      map[string]account{},
		users:       map[string]account{},
		idempotency: map[string]bool{},
		hits:        map[string]int{},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.countHits)

	r.Post("/api/admin/register/", s.handleRegister(RoleAdmin))
	r.Post("/api/admin/login/", s.handleLogin(RoleAdmin))
	r.Post("/api/user/signup/", s.handleRegister(RoleUser))
	r.Post("/api/user/login/", s.handleLogin(RoleUser))

	r.Group(func(adminR chi.Router) {
		adminR.Use(s.requireRole(RoleAdmin))
		adminR.Get("/api/admin/dashboard/", s.handleAdminDashboard)
		adminR.Post("/api/admin/generate-description/", s.handleGenerateDescription)
		adminR.Post("/api/admin/events/", s.handleCreateEvent)
	})

	r.Group(func(userR chi.Router) {
		userR.Use(s.requireRole(RoleUser))
		userR.Get("/api/user/dashboard/", s.handleUserDashboard)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Invalid request method")
	})
	return r
}

// SetClock replaces the clock used for token expiry and date filters.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddAdmin registers an admin account directly.
func (s *Server) AddAdmin(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[email] = account{name: "Admin", password: password}
}

// AddUser registers a user account directly.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = account{name: "User", password: password}
}

// AddEvent seeds an event.
func (s *Server) AddEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of the stored events.
func (s *Server) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Hits reports how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Token mints a token for email and role that expires after ttl (negative
// for an already expired token).
func (s *Server) Token(email, role string, ttl time.Duration) string {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"role":  role,
		"exp":   now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: sign token: %v", err))
	}
	return signed
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			s.mu.Lock()
			now := s.now
			s.mu.Unlock()

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return s.secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(now))
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "Token expired")
				return
			case err != nil:
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			if got, _ := claims["role"].(string); got != role {
				writeError(w, http.StatusForbidden, "Access denied")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func emailFrom(r *http.Request) string {
	claims, _ := r.Context().Value(claimsKey{}).(jwt.MapClaims)
	email, _ := claims["email"].(string)
	return email
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) accounts(role string) map[string]account {
	if role == RoleAdmin {
		return s.admins
	}
	return s.users
}

func (s *Server) handleRegister(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Name == "" || req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "Missing required fields: name, email, and password are required.")
			return
		}
		if len(req.Password) < 8 {
			writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
			return
		}

		s.mu.Lock()
		accounts := s.accounts(role)
		_, exists := accounts[req.Email]
		if !exists {
			accounts[req.Email] = account{name: req.Name, password: req.Password}
		}
		s.mu.Unlock()
		if exists {
			writeError(w, http.StatusConflict, "An account with this email already exists.")
			return
		}

		resp := map[string]string{"token": s.Token(req.Email, role, s.ttl)}
		if role == RoleAdmin {
			resp["redirect"] = "/admin/create-event"
		} else {
			resp["message"] = "Signup successful"
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) handleLogin(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		s.mu.Lock()
		acct, ok := s.accounts(role)[req.Email]
		s.mu.Unlock()
		if !ok || acct.password != req.Password {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		resp := map[string]string{"token": s.Token(req.Email, role, s.ttl)}
		if role == RoleAdmin {
			resp["redirect"] = "/admin/create-event"
		} else {
			resp["message"] = "Login successful"
			resp["redirect"] = "/user/home"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	costType := q.Get("type")
	location := strings.ToLower(q.Get("location"))
	date := q.Get("date")

	s.mu.Lock()
	today := s.now().Format("2006-01-02")
	weekEnd := s.now().AddDate(0, 0, 7).Format("2006-01-02")
	events := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if costType != "" && e.CostType != costType {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(e.Venue), location) {
			continue
		}
		switch date {
		case "":
		case "today":
			if e.StartDate != today {
				continue
			}
		case "week":
			if e.StartDate < today || e.StartDate > weekEnd {
				continue
			}
		default:
			if e.StartDate != date {
				continue
			}
		}
		events = append(events, e)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Dashboard data retrieved successfully",
		"events":  events,
	})
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r)

	s.mu.Lock()
	events := make([]Event, 0)
	for _, e := range s.events {
		if e.CreatedBy == email {
			events = append(events, e)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGenerateDescription(w http.ResponseWriter, r *http.Request) {
	var req Event
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateEvent(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	desc := fmt.Sprintf("Join us for %s at %s from %s to %s, %s. This is a %s event.",
		req.Title, req.Venue, req.StartDate, req.EndDate, req.Time, req.CostType)
	writeJSON(w, http.StatusOK, map[string]string{"description": desc})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes + 1<<20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	e := Event{
		Title:       r.FormValue("title"),
		Venue:       r.FormValue("venue"),
		StartDate:   r.FormValue("start_date"),
		EndDate:     r.FormValue("end_date"),
		Time:        r.FormValue("time"),
		CostType:    r.FormValue("cost_type"),
		Description: r.FormValue("description"),
		CreatedBy:   emailFrom(r),
	}
	if msg := validateEvent(e); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Image is required")
		return
	}
	defer func() { _ = file.Close() }()
	if header.Size > maxImageBytes {
		writeError(w, http.StatusBadRequest, "Image must be <= 5MB")
		return
	}
	name := strings.ToLower(header.Filename)
	if !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".jpeg") && !strings.HasSuffix(name, ".png") {
		writeError(w, http.StatusBadRequest, "Only .jpg, .jpeg, .png allowed")
		return
	}
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image")
		return
	}
	e.Image = "data:" + header.Header.Get("Content-Type") + ";base64,"

	key := r.Header.Get("Idempotency-Key")
	s.mu.Lock()
	duplicate := key != "" && s.idempotency[key]
	if !duplicate {
		s.events = append(s.events, e)
		if key != "" {
			s.idempotency[key] = true
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":  "Event created successfully",
		"redirect": "/admin/dashboard",
	})
}

func validateEvent(e Event) string {
	switch {
	case e.Title == "" || len(e.Title) > 50:
		return "Title is required and must be 50 chars or less"
	case e.Venue == "" || len(e.Venue) > 150:
		return "Venue is required and must be 150 chars or less"
	case e.StartDate == "" || e.EndDate == "" || e.StartDate > e.EndDate:
		return "Start date must be before end date"
	case e.Time == "":
		return "Time is required"
	case e.CostType != "free" && e.CostType != "paid":
		return `Cost type must be "free" or "paid"`
	default:
		return ""
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
