package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/addonbay/portal/internal/catalog/domain"
	"github.com/addonbay/portal/internal/catalog/storage"
)

// DuplicateResolution classifies a candidate addon against the persisted
// catalog.
type DuplicateResolution int

const (
	// Unique means no persisted addon claims the candidate's composer name.
	Unique DuplicateResolution = iota
	// DuplicateBlocking means the name collides and the candidate is
	// manually authored: the caller must re-prompt for a different name.
	DuplicateBlocking
	// DuplicateRepositoryAllowed means the name collides but the candidate
	// is repository-linked: the intent is presumed to be importing another
	// version of an existing project, so the caller redirects toward the
	// import path instead of failing hard.
	DuplicateRepositoryAllowed
)

// ResolveDuplicate checks the candidate's canonical package identifier
// against the persisted catalog. The composer name must be set before the
// check runs.
func ResolveDuplicate(ctx context.Context, addons storage.AddonStore, candidate domain.Addon) (DuplicateResolution, error) {
	if candidate.ComposerName == "" {
		return Unique, fmt.Errorf("candidate has no composer name")
	}

	_, err := addons.FindByComposerName(ctx, candidate.ComposerName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Unique, nil
		}
		return Unique, fmt.Errorf("resolve duplicate: %w", err)
	}

	if candidate.RepositoryLinked() {
		return DuplicateRepositoryAllowed, nil
	}
	return DuplicateBlocking, nil
}
