package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/addonbay/portal/internal/catalog/domain"
	"github.com/addonbay/portal/internal/catalog/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close catalog store: %v", err)
		}
	})
	return store
}

func sampleAddon(id, composerName string) domain.Addon {
	return domain.Addon{
		ID:               id,
		Name:             "Forms",
		ShortDescription: "form builder",
		Description:      "a form builder",
		ComposerName:     composerName,
		OwnerID:          "user-1",
		Versions: []domain.Version{
			{
				Version: "1.0",
				License: "MIT",
				Dependencies: []domain.Dependency{
					{PackageName: "acme/core", VersionConstraint: ">=2.0"},
				},
			},
			{Version: "1.1", License: "MIT"},
		},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestSaveGetAddonRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := sampleAddon("addon-1", "jane/forms")
	id, err := store.SaveAddon(context.Background(), input)
	if err != nil {
		t.Fatalf("save addon: %v", err)
	}
	if id != "addon-1" {
		t.Fatalf("saved id = %q, want %q", id, "addon-1")
	}

	got, err := store.GetAddon(context.Background(), "addon-1")
	if err != nil {
		t.Fatalf("get addon: %v", err)
	}
	if got.ComposerName != "jane/forms" {
		t.Fatalf("composer name = %q, want %q", got.ComposerName, "jane/forms")
	}
	if len(got.Versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(got.Versions))
	}
	if got.Versions[0].Version != "1.0" || got.Versions[1].Version != "1.1" {
		t.Fatalf("version order = [%q, %q], want [1.0, 1.1]", got.Versions[0].Version, got.Versions[1].Version)
	}
	if len(got.Versions[0].Dependencies) != 1 {
		t.Fatalf("dependencies = %d, want 1", len(got.Versions[0].Dependencies))
	}
	if got.Versions[0].Dependencies[0].PackageName != "acme/core" {
		t.Fatalf("dependency = %q, want %q", got.Versions[0].Dependencies[0].PackageName, "acme/core")
	}
}

func TestSaveAddonPreservesImportOrder(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := domain.Addon{
		ID:           "addon-order",
		Name:         "Ordered",
		ComposerName: "jane/ordered",
		OwnerID:      "user-1",
		Versions: []domain.Version{
			{Version: "v1.0"},
			{Version: "v1.1"},
			{Version: "v0.9"},
		},
	}
	if _, err := store.SaveAddon(context.Background(), input); err != nil {
		t.Fatalf("save addon: %v", err)
	}

	got, err := store.GetAddon(context.Background(), "addon-order")
	if err != nil {
		t.Fatalf("get addon: %v", err)
	}
	want := []string{"v1.0", "v1.1", "v0.9"}
	for i, version := range got.Versions {
		if version.Version != want[i] {
			t.Fatalf("versions[%d] = %q, want %q", i, version.Version, want[i])
		}
	}
}

func TestSaveAddonComposerNameCollision(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.SaveAddon(context.Background(), sampleAddon("addon-a", "jane/forms")); err != nil {
		t.Fatalf("save first addon: %v", err)
	}
	_, err := store.SaveAddon(context.Background(), sampleAddon("addon-b", "jane/forms"))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate save error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestSaveAddonRollsBackWhenVersionInsertFails(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := sampleAddon("addon-broken", "jane/broken")
	// Empty version violates the versions CHECK constraint after the addon
	// row was already written inside the transaction.
	input.Versions = append(input.Versions, domain.Version{Version: ""})

	if _, err := store.SaveAddon(context.Background(), input); err == nil {
		t.Fatal("expected save to fail")
	}

	if _, err := store.GetAddon(context.Background(), "addon-broken"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("addon visible after failed save: err = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := store.FindByComposerName(context.Background(), "jane/broken"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("composer name visible after failed save: err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestFindByComposerNameMissing(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.FindByComposerName(context.Background(), "nobody/nothing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestUpdateAddonOverwritesBasicInfoOnly(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.SaveAddon(context.Background(), sampleAddon("addon-edit", "jane/editable")); err != nil {
		t.Fatalf("save addon: %v", err)
	}

	err := store.UpdateAddon(context.Background(), "addon-edit", domain.BasicInfoInput{
		Name:             "Forms Reloaded",
		ShortDescription: "better forms",
	})
	if err != nil {
		t.Fatalf("update addon: %v", err)
	}

	got, err := store.GetAddon(context.Background(), "addon-edit")
	if err != nil {
		t.Fatalf("get addon: %v", err)
	}
	if got.Name != "Forms Reloaded" {
		t.Fatalf("name = %q, want %q", got.Name, "Forms Reloaded")
	}
	if got.ComposerName != "jane/editable" {
		t.Fatalf("composer name changed to %q", got.ComposerName)
	}
	if len(got.Versions) != 2 {
		t.Fatalf("versions = %d, want 2 after edit", len(got.Versions))
	}
}

func TestUpdateAddonMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	err := store.UpdateAddon(context.Background(), "ghost", domain.BasicInfoInput{Name: "Ghost"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestSearchAddonsMatchesNameAndShortDescription(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	first := sampleAddon("addon-s1", "jane/search-one")
	first.Name = "Mailer"
	first.ShortDescription = "sends email"
	second := sampleAddon("addon-s2", "jane/search-two")
	second.Name = "Logger"
	second.ShortDescription = "writes mail logs"
	for _, addon := range []domain.Addon{first, second} {
		if _, err := store.SaveAddon(context.Background(), addon); err != nil {
			t.Fatalf("save addon %s: %v", addon.ID, err)
		}
	}

	got, err := store.SearchAddons(context.Background(), "mail")
	if err != nil {
		t.Fatalf("search addons: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2", len(got))
	}
}

func TestTagAddonAndFilterByTag(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.SaveAddon(context.Background(), sampleAddon("addon-t1", "jane/tagged")); err != nil {
		t.Fatalf("save addon: %v", err)
	}
	result, err := store.sqlDB.Exec(`INSERT INTO tags (name, slug) VALUES ('Forms', 'forms')`)
	if err != nil {
		t.Fatalf("insert tag: %v", err)
	}
	tagID, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("tag id: %v", err)
	}

	if err := store.TagAddon(context.Background(), "addon-t1", tagID); err != nil {
		t.Fatalf("tag addon: %v", err)
	}
	if err := store.TagAddon(context.Background(), "addon-t1", tagID); err != nil {
		t.Fatalf("re-tag addon: %v", err)
	}

	matches, err := store.FilterByTag(context.Background(), "forms")
	if err != nil {
		t.Fatalf("filter by tag: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "addon-t1" {
		t.Fatalf("filter matches = %v, want [addon-t1]", matches)
	}

	tags, err := store.AddonTags(context.Background(), "addon-t1")
	if err != nil {
		t.Fatalf("addon tags: %v", err)
	}
	if len(tags) != 1 || tags[0].Slug != "forms" {
		t.Fatalf("addon tags = %v, want [forms]", tags)
	}
}
