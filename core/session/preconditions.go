// Package session ensures a valid access token and a target vehicle before
// commands are issued, and authorizes the process at startup.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/lowbac/core/logger"
)

// DefaultLead is the refresh lead time covering one command sequence.
const DefaultLead = 60 * time.Second

// TokenRefresher keeps the access token valid.
type TokenRefresher interface {
	RefreshIfExpiring(ctx context.Context, lead time.Duration) error
}

// Preconditions prepares a request for command dispatch.
type Preconditions struct {
	tokens   TokenRefresher
	resolver Resolver
	lead     time.Duration
	log      logger.Logger
}

// NewPreconditions creates Preconditions. A non-positive lead uses DefaultLead.
func NewPreconditions(tokens TokenRefresher, resolver Resolver, lead time.Duration, log logger.Logger) (*Preconditions, error) {
	if tokens == nil || resolver == nil {
		return nil, fmt.Errorf("token refresher and resolver are required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if lead <= 0 {
		lead = DefaultLead
	}
	return &Preconditions{tokens: tokens, resolver: resolver, lead: lead, log: log}, nil
}

// Prepare refreshes the token if it expires within the lead time and resolves
// the vehicle for userKey. Failures are returned as *Error.
func (p *Preconditions) Prepare(ctx context.Context, userKey string) (string, error) {
	if err := p.tokens.RefreshIfExpiring(ctx, p.lead); err != nil {
		return "", &Error{Op: "refresh", Err: err}
	}
	vehicleID, err := p.resolver.Resolve(ctx, userKey)
	if err != nil {
		return "", &Error{Op: "resolve", UserKey: userKey, Err: err}
	}
	p.log.Debugf("user %q resolved to vehicle %s", userKey, vehicleID)
	return vehicleID, nil
}
