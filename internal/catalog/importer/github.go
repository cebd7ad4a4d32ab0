package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/addonbay/portal/internal/catalog/domain"
)

const (
	defaultAPIBase = "https://api.github.com"
	defaultRawBase = "https://raw.githubusercontent.com"
)

// JSONGetter fetches a URL and decodes its JSON body. Satisfied by Client
// and BreakerClient.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, target any) error
}

// GitHub imports addon metadata and versions from GitHub repositories.
type GitHub struct {
	getter  JSONGetter
	apiBase string
	rawBase string
}

// GitHubOption configures a GitHub importer.
type GitHubOption func(*GitHub)

// WithAPIBase overrides the REST API base URL.
func WithAPIBase(base string) GitHubOption {
	return func(g *GitHub) {
		g.apiBase = strings.TrimRight(base, "/")
	}
}

// WithRawBase overrides the raw-content base URL.
func WithRawBase(base string) GitHubOption {
	return func(g *GitHub) {
		g.rawBase = strings.TrimRight(base, "/")
	}
}

// NewGitHub creates a GitHub importer backend.
func NewGitHub(getter JSONGetter, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		getter:  getter,
		apiBase: defaultAPIBase,
		rawBase: defaultRawBase,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type githubRepo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	License       struct {
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

type githubTag struct {
	Name string `json:"name"`
}

// composerManifest is the subset of composer.json the importer reads.
// The license field accepts both the string and the array form.
type composerManifest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	License     composerLicense   `json:"license"`
	Require     map[string]string `json:"require"`
}

type composerLicense string

func (l *composerLicense) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = composerLicense(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = composerLicense(strings.Join(many, ", "))
		return nil
	}
	return fmt.Errorf("unsupported license value")
}

// ImportAddon fetches repository metadata and the root manifest, returning
// a populated aggregate with no versions.
func (g *GitHub) ImportAddon(ctx context.Context, sourceURL string) (domain.Addon, error) {
	owner, repo, err := g.splitRepoPath(sourceURL)
	if err != nil {
		return domain.Addon{}, err
	}

	var meta githubRepo
	if err := g.getter.GetJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", g.apiBase, owner, repo), &meta); err != nil {
		return domain.Addon{}, fmt.Errorf("import addon %s/%s: %w", owner, repo, err)
	}

	addon := domain.Addon{
		Name:             meta.Name,
		ShortDescription: meta.Description,
	}
	if meta.HTMLURL != "" {
		if normalized, err := NormalizeRepositoryURL(meta.HTMLURL); err == nil {
			addon.RepositoryURL = normalized
		}
	}

	// The root manifest is optional; its absence just leaves the composer
	// name to be derived later.
	branch := meta.DefaultBranch
	if branch == "" {
		branch = "master"
	}
	var manifest composerManifest
	if err := g.getter.GetJSON(ctx, g.manifestURL(owner, repo, branch), &manifest); err == nil {
		addon.ComposerName = strings.TrimSpace(manifest.Name)
		if addon.Description == "" {
			addon.Description = strings.TrimSpace(manifest.Description)
		}
	}

	return addon, nil
}

// ImportVersions enumerates the repository's tags in source order. Tags
// whose manifest is missing or malformed are skipped; a source that cannot
// be listed fails the run.
func (g *GitHub) ImportVersions(ctx context.Context, repositoryURL string) ([]domain.Version, error) {
	owner, repo, err := g.splitRepoPath(repositoryURL)
	if err != nil {
		return nil, err
	}

	var tags []githubTag
	if err := g.getter.GetJSON(ctx, fmt.Sprintf("%s/repos/%s/%s/tags", g.apiBase, owner, repo), &tags); err != nil {
		if errors.Is(err, ErrFormatInvalid) {
			return nil, fmt.Errorf("list tags for %s/%s: %w", owner, repo, err)
		}
		return nil, fmt.Errorf("list tags for %s/%s: %w", owner, repo, ErrSourceUnreachable)
	}

	versions := make([]domain.Version, 0, len(tags))
	for _, tag := range tags {
		var manifest composerManifest
		err := g.getter.GetJSON(ctx, g.manifestURL(owner, repo, tag.Name), &manifest)
		if err != nil {
			if errors.Is(err, ErrFormatInvalid) {
				continue
			}
			return nil, fmt.Errorf("manifest for tag %s: %w", tag.Name, ErrSourceUnreachable)
		}

		versions = append(versions, domain.Version{
			Version:      tag.Name,
			License:      string(manifest.License),
			Dependencies: dependenciesFromRequire(manifest.Require),
		})
	}
	return versions, nil
}

func (g *GitHub) manifestURL(owner, repo, ref string) string {
	return fmt.Sprintf("%s/%s/%s/%s/composer.json", g.rawBase, owner, repo, ref)
}

func (g *GitHub) splitRepoPath(rawURL string) (owner, repo string, err error) {
	normalized, err := NormalizeRepositoryURL(rawURL)
	if err != nil {
		return "", "", err
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", "", fmt.Errorf("parse repository url: %w", ErrFormatInvalid)
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository path %q is not owner/name: %w", parsed.Path, ErrFormatInvalid)
	}
	return parts[0], parts[1], nil
}

// dependenciesFromRequire flattens a composer require block. Package names
// are sorted so the result is deterministic; composer manifests carry no
// meaningful ordering.
func dependenciesFromRequire(require map[string]string) []domain.Dependency {
	if len(require) == 0 {
		return nil
	}
	names := make([]string, 0, len(require))
	for name := range require {
		names = append(names, name)
	}
	sort.Strings(names)

	dependencies := make([]domain.Dependency, 0, len(names))
	for _, name := range names {
		dependencies = append(dependencies, domain.Dependency{
			PackageName:       name,
			VersionConstraint: require[name],
		})
	}
	return dependencies
}

var _ RepositoryImporter = (*GitHub)(nil)
