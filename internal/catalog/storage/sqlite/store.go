// Package sqlite provides a SQLite-backed catalog storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/addonbay/portal/internal/catalog/domain"
	"github.com/addonbay/portal/internal/catalog/storage"
	"github.com/addonbay/portal/internal/catalog/storage/sqlite/migrations"
	sqlitemigrate "github.com/addonbay/portal/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists catalog state in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite catalog store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const addonColumns = `id, name, short_description, description, demo_url, repository_url, composer_name, owner_id`

func scanAddon(row interface{ Scan(...any) error }) (domain.Addon, error) {
	var addon domain.Addon
	err := row.Scan(
		&addon.ID,
		&addon.Name,
		&addon.ShortDescription,
		&addon.Description,
		&addon.DemoURL,
		&addon.RepositoryURL,
		&addon.ComposerName,
		&addon.OwnerID,
	)
	return addon, err
}

// FindByComposerName returns the addon registered under the canonical
// package identifier, without versions.
func (s *Store) FindByComposerName(ctx context.Context, composerName string) (domain.Addon, error) {
	if err := ctx.Err(); err != nil {
		return domain.Addon{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Addon{}, fmt.Errorf("storage is not configured")
	}
	composerName = strings.TrimSpace(composerName)
	if composerName == "" {
		return domain.Addon{}, fmt.Errorf("composer name is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+addonColumns+` FROM addons WHERE composer_name = ?`,
		composerName,
	)
	addon, err := scanAddon(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Addon{}, storage.ErrNotFound
		}
		return domain.Addon{}, fmt.Errorf("find addon by composer name: %w", err)
	}
	return addon, nil
}

// GetAddon returns an addon with its versions and dependencies, in stored
// order.
func (s *Store) GetAddon(ctx context.Context, id string) (domain.Addon, error) {
	if err := ctx.Err(); err != nil {
		return domain.Addon{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Addon{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Addon{}, fmt.Errorf("addon id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+addonColumns+` FROM addons WHERE id = ?`, id)
	addon, err := scanAddon(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Addon{}, storage.ErrNotFound
		}
		return domain.Addon{}, fmt.Errorf("get addon: %w", err)
	}

	versions, err := s.loadVersions(ctx, id)
	if err != nil {
		return domain.Addon{}, err
	}
	addon.Versions = versions
	return addon, nil
}

func (s *Store) loadVersions(ctx context.Context, addonID string) ([]domain.Version, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, version, license, filename
		   FROM addon_versions
		  WHERE addon_id = ?
		  ORDER BY position ASC`,
		addonID,
	)
	if err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.Version
	var versionIDs []int64
	for rows.Next() {
		var versionID int64
		var version domain.Version
		if err := rows.Scan(&versionID, &version.Version, &version.License, &version.Filename); err != nil {
			return nil, fmt.Errorf("load versions: %w", err)
		}
		versions = append(versions, version)
		versionIDs = append(versionIDs, versionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}

	for i, versionID := range versionIDs {
		dependencies, err := s.loadDependencies(ctx, versionID)
		if err != nil {
			return nil, err
		}
		versions[i].Dependencies = dependencies
	}
	return versions, nil
}

func (s *Store) loadDependencies(ctx context.Context, versionID int64) ([]domain.Dependency, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT package_name, version_constraint
		   FROM addon_dependencies
		  WHERE version_id = ?
		  ORDER BY position ASC`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}
	defer rows.Close()

	var dependencies []domain.Dependency
	for rows.Next() {
		var dependency domain.Dependency
		if err := rows.Scan(&dependency.PackageName, &dependency.VersionConstraint); err != nil {
			return nil, fmt.Errorf("load dependencies: %w", err)
		}
		dependencies = append(dependencies, dependency)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}
	return dependencies, nil
}

// SaveAddon persists the aggregate and every pending version and dependency
// inside one transaction. Nothing is visible unless the whole commit
// succeeds.
func (s *Store) SaveAddon(ctx context.Context, addon domain.Addon) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(addon.ID) == "" {
		return "", fmt.Errorf("addon id is required")
	}
	if strings.TrimSpace(addon.ComposerName) == "" {
		return "", fmt.Errorf("composer name is required")
	}
	if strings.TrimSpace(addon.OwnerID) == "" {
		return "", fmt.Errorf("addon owner is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin save addon: %w", err)
	}

	now := toMillis(s.clock())
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO addons (
		   id, name, short_description, description, demo_url,
		   repository_url, composer_name, owner_id, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		addon.ID,
		addon.Name,
		addon.ShortDescription,
		addon.Description,
		addon.DemoURL,
		addon.RepositoryURL,
		addon.ComposerName,
		addon.OwnerID,
		now,
		now,
	)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return "", storage.ErrAlreadyExists
		}
		return "", fmt.Errorf("save addon: %w", err)
	}

	for position, version := range addon.Versions {
		result, err := tx.ExecContext(
			ctx,
			`INSERT INTO addon_versions (addon_id, position, version, license, filename)
			 VALUES (?, ?, ?, ?, ?)`,
			addon.ID,
			position,
			version.Version,
			version.License,
			version.Filename,
		)
		if err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("save version %q: %w", version.Version, err)
		}
		versionID, err := result.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("save version %q: %w", version.Version, err)
		}
		for depPosition, dependency := range version.Dependencies {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO addon_dependencies (version_id, position, package_name, version_constraint)
				 VALUES (?, ?, ?, ?)`,
				versionID,
				depPosition,
				dependency.PackageName,
				dependency.VersionConstraint,
			); err != nil {
				_ = tx.Rollback()
				return "", fmt.Errorf("save dependency %q: %w", dependency.PackageName, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save addon: %w", err)
	}
	return addon.ID, nil
}

// UpdateAddon overwrites the basic-info fields of a persisted addon.
func (s *Store) UpdateAddon(ctx context.Context, id string, input domain.BasicInfoInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("addon id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.ErrEmptyName
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE addons
		    SET name = ?, short_description = ?, description = ?, demo_url = ?, updated_at = ?
		  WHERE id = ?`,
		name,
		strings.TrimSpace(input.ShortDescription),
		strings.TrimSpace(input.Description),
		strings.TrimSpace(input.DemoURL),
		toMillis(s.clock()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update addon: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update addon: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListAddons returns all addons without versions, newest first.
func (s *Store) ListAddons(ctx context.Context) ([]domain.Addon, error) {
	return s.queryAddons(ctx, `SELECT `+addonColumns+` FROM addons ORDER BY created_at DESC, id ASC`)
}

// FilterByTag returns addons labeled with the tag slug.
func (s *Store) FilterByTag(ctx context.Context, tagSlug string) ([]domain.Addon, error) {
	tagSlug = strings.TrimSpace(tagSlug)
	if tagSlug == "" {
		return nil, fmt.Errorf("tag slug is required")
	}
	return s.queryAddons(
		ctx,
		`SELECT `+addonColumns+` FROM addons
		  WHERE id IN (
		        SELECT at.addon_id FROM addon_tags at
		          JOIN tags t ON t.id = at.tag_id
		         WHERE t.slug = ?)
		  ORDER BY created_at DESC, id ASC`,
		tagSlug,
	)
}

// SearchAddons returns addons whose name or short description contains the
// query, case-insensitively.
func (s *Store) SearchAddons(ctx context.Context, query string) ([]domain.Addon, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	return s.queryAddons(
		ctx,
		`SELECT `+addonColumns+` FROM addons
		  WHERE name LIKE ? OR short_description LIKE ?
		  ORDER BY created_at DESC, id ASC`,
		pattern,
		pattern,
	)
}

func (s *Store) queryAddons(ctx context.Context, query string, args ...any) ([]domain.Addon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query addons: %w", err)
	}
	defer rows.Close()

	var addons []domain.Addon
	for rows.Next() {
		addon, err := scanAddon(rows)
		if err != nil {
			return nil, fmt.Errorf("query addons: %w", err)
		}
		addons = append(addons, addon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query addons: %w", err)
	}
	return addons, nil
}

// ListTags returns all tags ordered by slug.
func (s *Store) ListTags(ctx context.Context) ([]domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, slug FROM tags ORDER BY slug ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("list tags: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// AddonTags returns the tags attached to one addon.
func (s *Store) AddonTags(ctx context.Context, addonID string) ([]domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	addonID = strings.TrimSpace(addonID)
	if addonID == "" {
		return nil, fmt.Errorf("addon id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT t.id, t.name, t.slug
		   FROM tags t
		   JOIN addon_tags at ON at.tag_id = t.id
		  WHERE at.addon_id = ?
		  ORDER BY t.slug ASC`,
		addonID,
	)
	if err != nil {
		return nil, fmt.Errorf("addon tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("addon tags: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("addon tags: %w", err)
	}
	return tags, nil
}

// TagAddon attaches a tag to a persisted addon. Re-tagging is a no-op.
func (s *Store) TagAddon(ctx context.Context, addonID string, tagID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	addonID = strings.TrimSpace(addonID)
	if addonID == "" {
		return fmt.Errorf("addon id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO addon_tags (addon_id, tag_id) VALUES (?, ?)`,
		addonID,
		tagID,
	)
	if err != nil {
		return fmt.Errorf("tag addon: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed")
}

var (
	_ storage.AddonStore = (*Store)(nil)
	_ storage.TagStore   = (*Store)(nil)
)
