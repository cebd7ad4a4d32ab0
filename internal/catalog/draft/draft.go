// Package draft defines the token-keyed store for addons in progress.
//
// A draft exists in the store if and only if the user has completed at
// least the basic-info step of the creation wizard and has not yet
// finished or abandoned it. The store owns the draft for the lifetime of
// the token; the wizard borrows it per request and writes it back at the
// end of the request. Puts are last-write-wins: concurrent tabs sharing a
// token are not coordinated.
package draft

import (
	"context"
	"errors"
	"time"

	"github.com/addonbay/portal/internal/catalog/domain"
)

// ErrNotFound indicates no draft is stored under a token. Callers must
// treat it as "no draft yet", not as a failure.
var ErrNotFound = errors.New("draft not found")

// State tags how far a draft has progressed. Transitions validate the
// expected state before acting instead of inferring the step from which
// optional fields happen to be set.
type State string

const (
	// StateBasicInfoSet means the aggregate carries basic info but no
	// versions yet.
	StateBasicInfoSet State = "basic_info_set"
	// StateVersionsReady means at least one version is staged and the
	// draft can be finished.
	StateVersionsReady State = "versions_ready"
)

// Draft is an addon in progress, keyed by its wizard token.
type Draft struct {
	Token     string       `json:"token"`
	State     State        `json:"state"`
	Addon     domain.Addon `json:"addon"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Store persists one draft per token.
type Store interface {
	// Get returns the draft stored under token, or ErrNotFound.
	Get(ctx context.Context, token string) (Draft, error)
	// Put stores the draft under its token, overwriting any previous value.
	Put(ctx context.Context, d Draft) error
	// Delete removes the draft for token. Deleting an absent draft is not
	// an error.
	Delete(ctx context.Context, token string) error
	// PruneExpired evicts drafts not updated within ttl and reports how
	// many were removed.
	PruneExpired(ctx context.Context, ttl time.Duration) (int, error)
}
