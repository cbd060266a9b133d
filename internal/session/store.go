package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrNoDomain is returned when a session operation is asked to act on None.
	ErrNoDomain = errors.New("session domain is required")

	// ErrEmptyToken is returned by Save when the token is blank.
	ErrEmptyToken = errors.New("session token is empty")
)

// Backend is the key-value substrate a Store persists tokens in.
// Put must replace any previous value in a single write.
type Backend interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	// DeleteIf removes key only while it still holds value, as one atomic step,
	// and reports whether it did.
	DeleteIf(ctx context.Context, key, value string) (bool, error)
	Close() error
}

// Store manages one session per identity domain on top of a Backend.
type Store struct {
	backend Backend
	logger  zerolog.Logger
}

// NewStore wraps backend. A nil backend gets an in-memory one.
func NewStore(backend Backend, logger zerolog.Logger) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Store{
		backend: backend,
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// Save stores token as the domain's session, replacing any previous one.
func (s *Store) Save(ctx context.Context, d Domain, token string) error {
	if d.Key() == "" {
		return ErrNoDomain
	}
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.backend.Put(ctx, d.Key(), token); err != nil {
		return fmt.Errorf("save %s session: %w", d, err)
	}
	s.logger.Debug().Str("domain", d.String()).Msg("session saved")
	return nil
}

// Get returns the domain's token. A missing session is reported with ok=false;
// backend failures are logged and reported the same way so callers only ever
// see "signed in" or "not signed in".
func (s *Store) Get(ctx context.Context, d Domain) (string, bool) {
	if d.Key() == "" {
		return "", false
	}
	token, ok, err := s.backend.Get(ctx, d.Key())
	if err != nil {
		s.logger.Warn().Err(err).Str("domain", d.String()).Msg("session read failed; treating as signed out")
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Clear removes the domain's session. The other domain is left untouched.
func (s *Store) Clear(ctx context.Context, d Domain) error {
	if d.Key() == "" {
		return ErrNoDomain
	}
	if err := s.backend.Delete(ctx, d.Key()); err != nil {
		return fmt.Errorf("clear %s session: %w", d, err)
	}
	s.logger.Debug().Str("domain", d.String()).Msg("session cleared")
	return nil
}

// ClearIf removes the domain's session only if it still holds token. It reports
// false when the session is gone or was replaced by a newer sign-in.
func (s *Store) ClearIf(ctx context.Context, d Domain, token string) (bool, error) {
	if d.Key() == "" {
		return false, ErrNoDomain
	}
	if token == "" {
		return false, nil
	}
	cleared, err := s.backend.DeleteIf(ctx, d.Key(), token)
	if err != nil {
		return false, fmt.Errorf("clear %s session: %w", d, err)
	}
	s.logger.Debug().Str("domain", d.String()).Bool("cleared", cleared).Msg("conditional session clear")
	return cleared, nil
}

// Claims returns the display claims of the domain's session. It never fails:
// a missing or undecodable token yields the domain's fallback label.
func (s *Store) Claims(ctx context.Context, d Domain) Claims {
	token, ok := s.Get(ctx, d)
	if !ok {
		return fallbackClaims(d)
	}
	claims, err := DecodeClaims(token)
	if err != nil {
		s.logger.Debug().Err(err).Str("domain", d.String()).Msg("claims not decodable; using fallback label")
		return fallbackClaims(d)
	}
	if claims.Email == "" {
		claims.Label = d.Label()
		claims.Fallback = true
	}
	return claims
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
