package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrNoRefreshToken is returned when a refresh is needed but no refresh
	// token is known.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrNoAccessToken is returned when a request must be authorized before
	// any token was obtained.
	ErrNoAccessToken = errors.New("no access token available")
)

// Session holds the process wide access token of the vehicle-command API.
// Readers always observe a complete token: refreshes swap the pointer
// atomically and are serialized among themselves.
type Session struct {
	conf   oauth2.Config
	token  atomic.Pointer[oauth2.Token]
	mu     sync.Mutex
	client *http.Client
	now    func() time.Time
}

// Option customizes a Session.
type Option func(*Session)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a Session seeded with conf.RefreshToken, if any.
func NewSession(conf Conf, opts ...Option) *Session {
	s := &Session{conf: conf.toOauth2Config(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if conf.RefreshToken != "" {
		s.token.Store(&oauth2.Token{RefreshToken: conf.RefreshToken})
	}
	return s
}

// Token returns the current token, or nil before the first exchange.
func (s *Session) Token() *oauth2.Token {
	return s.token.Load()
}

// ExpiresWithin reports whether the access token is missing or expires within
// lead. Tokens without an expiry never expire.
func (s *Session) ExpiresWithin(lead time.Duration) bool {
	tok := s.token.Load()
	if tok == nil || tok.AccessToken == "" {
		return true
	}
	if tok.Expiry.IsZero() {
		return false
	}
	return !tok.Expiry.After(s.now().Add(lead))
}

// RefreshIfExpiring refreshes the access token when it expires within lead.
// A token valid beyond lead is kept as is.
func (s *Session) RefreshIfExpiring(ctx context.Context, lead time.Duration) error {
	if !s.ExpiresWithin(lead) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// another caller may have refreshed while we waited
	if !s.ExpiresWithin(lead) {
		return nil
	}
	cur := s.token.Load()
	if cur == nil || cur.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	src := s.conf.TokenSource(s.withClient(ctx), &oauth2.Token{RefreshToken: cur.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	s.token.Store(tok)
	return nil
}

// Exchange trades an authorization code for access and refresh tokens.
func (s *Session) Exchange(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.conf.Exchange(s.withClient(ctx), code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	s.token.Store(tok)
	return nil
}

// SetAuthHeader authorizes r with the current access token.
func (s *Session) SetAuthHeader(r *http.Request) error {
	tok := s.token.Load()
	if tok == nil || tok.AccessToken == "" {
		return ErrNoAccessToken
	}
	tok.SetAuthHeader(r)
	return nil
}

func (s *Session) withClient(ctx context.Context) context.Context {
	if s.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}
