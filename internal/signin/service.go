// Package signin exchanges credentials for a domain session and tears
// sessions down again.
package signin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventhive/internal/gateway"
	"github.com/Togather-Foundation/eventhive/internal/metrics"
	"github.com/Togather-Foundation/eventhive/internal/problem"
	"github.com/Togather-Foundation/eventhive/internal/session"
)

const (
	AdminLoginPath    = "/api/admin/login/"
	AdminRegisterPath = "/api/admin/register/"
	UserLoginPath     = "/api/user/login/"
	UserSignupPath    = "/api/user/signup/"
)

// ErrMissingToken is wrapped when a successful response carries no token.
var ErrMissingToken = errors.New("response did not include a token")

// Credentials are the sign-in form fields.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration are the sign-up form fields.
type Registration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Result describes a newly established session.
type Result struct {
	Domain   session.Domain `json:"domain" yaml:"domain"`
	Claims   session.Claims `json:"claims" yaml:"claims"`
	Message  string         `json:"message,omitempty" yaml:"message,omitempty"`
	Redirect string         `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

// Service runs the sign-in flows against the API and records the resulting
// sessions in the store.
type Service struct {
	gw       gateway.Doer
	store    *session.Store
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewService creates a sign-in service.
func NewService(gw gateway.Doer, store *session.Store, logger zerolog.Logger) *Service {
	return &Service{
		gw:       gw,
		store:    store,
		validate: validator.New(),
		logger:   logger.With().Str("component", "signin").Logger(),
	}
}

// Login signs in to domain. Only that domain's session is replaced.
func (s *Service) Login(ctx context.Context, domain session.Domain, creds Credentials) (Result, error) {
	var path string
	switch domain {
	case session.Admin:
		path = AdminLoginPath
	case session.User:
		path = UserLoginPath
	default:
		return Result{}, problem.InvalidInput("Choose whether to sign in as admin or user.", "domain")
	}

	creds.Email = strings.TrimSpace(creds.Email)
	if p := s.check(creds); p != nil {
		return Result{}, p
	}
	return s.exchange(ctx, domain, path, creds)
}

// Signup creates a user account and signs in to the user domain.
func (s *Service) Signup(ctx context.Context, reg Registration) (Result, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if p := s.check(reg); p != nil {
		return Result{}, p
	}
	return s.exchange(ctx, session.User, UserSignupPath, reg)
}

// RegisterAdmin creates an admin account and signs in to the admin domain.
func (s *Service) RegisterAdmin(ctx context.Context, reg Registration) (Result, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if p := s.check(reg); p != nil {
		return Result{}, p
	}
	return s.exchange(ctx, session.Admin, AdminRegisterPath, reg)
}

// Logout clears domain's session and leaves the other domain alone.
func (s *Service) Logout(ctx context.Context, domain session.Domain) error {
	if err := s.store.Clear(ctx, domain); err != nil {
		return problem.Normalize(fmt.Errorf("logout: %w", err))
	}
	metrics.SessionsActive.WithLabelValues(domain.String()).Set(0)
	s.logger.Info().Str("domain", domain.String()).Msg("signed out")
	return nil
}

func (s *Service) exchange(ctx context.Context, domain session.Domain, path string, body any) (Result, error) {
	var resp tokenResponse
	err := s.gw.Do(ctx, gateway.Request{
		Domain: session.None,
		Method: http.MethodPost,
		Path:   path,
		JSON:   body,
	}, &resp)
	if err != nil {
		return Result{}, problem.Normalize(err)
	}

	if strings.TrimSpace(resp.Token) == "" {
		return Result{}, problem.Normalize(&gateway.Error{
			Kind:   gateway.KindMalformed,
			Method: http.MethodPost,
			Path:   path,
			Err:    ErrMissingToken,
		})
	}

	if err := s.store.Save(ctx, domain, resp.Token); err != nil {
		return Result{}, problem.Normalize(fmt.Errorf("save session: %w", err))
	}
	metrics.SessionsActive.WithLabelValues(domain.String()).Set(1)

	claims := s.store.Claims(ctx, domain)
	s.logger.Info().Str("domain", domain.String()).Str("label", claims.Label).Msg("signed in")

	return Result{
		Domain:   domain,
		Claims:   claims,
		Message:  resp.Message,
		Redirect: resp.Redirect,
	}, nil
}

// check validates a form and reports the first offending field.
func (s *Service) check(form any) *problem.Problem {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return problem.InvalidInput("Please check the form and try again.")
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	first := verrs[0]
	var msg string
	switch {
	case first.Tag() == "email":
		msg = "Please enter a valid email address."
	default:
		msg = fmt.Sprintf("%s is required.", first.Field())
	}
	return problem.InvalidInput(msg, fields...)
}
