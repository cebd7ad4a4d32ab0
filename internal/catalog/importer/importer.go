// Package importer drives calls to external source-code repositories to
// populate addon metadata and version lists.
package importer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/addonbay/portal/internal/catalog/domain"
)

var (
	// ErrSourceUnreachable indicates the remote endpoint could not be
	// reached or listed.
	ErrSourceUnreachable = errors.New("import source unreachable")
	// ErrFormatInvalid indicates the remote endpoint does not resemble a
	// supported repository.
	ErrFormatInvalid = errors.New("import source format invalid")
)

// RepositoryImporter fetches addon metadata and version lists from one
// external repository backend.
type RepositoryImporter interface {
	// ImportAddon fetches project metadata for the source URL and returns
	// a populated aggregate with no versions.
	ImportAddon(ctx context.Context, sourceURL string) (domain.Addon, error)

	// ImportVersions enumerates published release tags at the source and
	// returns them as versions with dependencies resolved from the
	// manifest at each revision. Source order is preserved; malformed
	// individual tags are skipped, but the run fails with
	// ErrSourceUnreachable when the source itself cannot be listed.
	ImportVersions(ctx context.Context, repositoryURL string) ([]domain.Version, error)
}

// Factory resolves the importer backend for a repository URL. Backend
// selection is keyed on the URL's host.
type Factory interface {
	ImporterFor(sourceURL string) (RepositoryImporter, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(sourceURL string) (RepositoryImporter, error)

// ImporterFor calls f.
func (f FactoryFunc) ImporterFor(sourceURL string) (RepositoryImporter, error) {
	return f(sourceURL)
}

// NormalizeRepositoryURL canonicalizes a user-supplied repository URL so
// duplicate checks and zipball URL derivation behave consistently. The
// scheme is forced to https, the host lowercased, and tracking suffixes
// (query, fragment, ".git", trailing slash) dropped.
func NormalizeRepositoryURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("repository url is required: %w", ErrFormatInvalid)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse repository url: %w", ErrFormatInvalid)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q: %w", parsed.Scheme, ErrFormatInvalid)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("repository url has no host: %w", ErrFormatInvalid)
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	return "https://" + strings.ToLower(parsed.Host) + path, nil
}
