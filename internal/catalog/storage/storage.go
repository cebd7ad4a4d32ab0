// Package storage defines the persistence contracts of the addon catalog.
package storage

import (
	"context"
	"errors"

	"github.com/addonbay/portal/internal/catalog/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("record already exists")
)

// AddonStore persists addons, their versions, and their dependencies.
type AddonStore interface {
	// FindByComposerName returns the addon whose canonical package
	// identifier matches, without its versions. Used by the duplicate
	// resolver.
	FindByComposerName(ctx context.Context, composerName string) (domain.Addon, error)

	// GetAddon returns an addon with its versions and dependencies.
	GetAddon(ctx context.Context, id string) (domain.Addon, error)

	// SaveAddon persists the aggregate and all pending versions and
	// dependencies as a single transaction: either everything is stored or
	// nothing is. The addon's ID must be set by the caller; it is returned
	// for convenience. A composer-name collision yields ErrAlreadyExists.
	SaveAddon(ctx context.Context, addon domain.Addon) (string, error)

	// UpdateAddon overwrites the basic-info fields of a persisted addon.
	// Versions and composer name are untouched. Used by the edit flow.
	UpdateAddon(ctx context.Context, id string, input domain.BasicInfoInput) error

	// ListAddons returns all addons without versions, newest first.
	ListAddons(ctx context.Context) ([]domain.Addon, error)

	// FilterByTag returns addons labeled with the tag slug.
	FilterByTag(ctx context.Context, tagSlug string) ([]domain.Addon, error)

	// SearchAddons returns addons whose name or short description contains
	// the query, case-insensitively.
	SearchAddons(ctx context.Context, query string) ([]domain.Addon, error)
}

// TagStore reads and writes the addon/tag relation.
type TagStore interface {
	ListTags(ctx context.Context) ([]domain.Tag, error)
	AddonTags(ctx context.Context, addonID string) ([]domain.Tag, error)
	TagAddon(ctx context.Context, addonID string, tagID int64) error
}
