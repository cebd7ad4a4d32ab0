package wizard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/addonbay/portal/internal/catalog/domain"
	"github.com/addonbay/portal/internal/catalog/draft"
	"github.com/addonbay/portal/internal/catalog/importer"
	"github.com/addonbay/portal/internal/catalog/storage"
	"github.com/addonbay/portal/internal/identity"
)

type memDraftStore struct {
	drafts map[string]draft.Draft
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{drafts: make(map[string]draft.Draft)}
}

func (s *memDraftStore) Get(_ context.Context, token string) (draft.Draft, error) {
	d, ok := s.drafts[token]
	if !ok {
		return draft.Draft{}, draft.ErrNotFound
	}
	return d, nil
}

func (s *memDraftStore) Put(_ context.Context, d draft.Draft) error {
	s.drafts[d.Token] = d
	return nil
}

func (s *memDraftStore) Delete(_ context.Context, token string) error {
	delete(s.drafts, token)
	return nil
}

func (s *memDraftStore) PruneExpired(context.Context, time.Duration) (int, error) {
	return 0, nil
}

type memAddonStore struct {
	byComposer map[string]domain.Addon
	byID       map[string]domain.Addon
	saveErr    error
}

func newMemAddonStore() *memAddonStore {
	return &memAddonStore{
		byComposer: make(map[string]domain.Addon),
		byID:       make(map[string]domain.Addon),
	}
}

func (s *memAddonStore) FindByComposerName(_ context.Context, composerName string) (domain.Addon, error) {
	addon, ok := s.byComposer[composerName]
	if !ok {
		return domain.Addon{}, storage.ErrNotFound
	}
	return addon, nil
}

func (s *memAddonStore) GetAddon(_ context.Context, id string) (domain.Addon, error) {
	addon, ok := s.byID[id]
	if !ok {
		return domain.Addon{}, storage.ErrNotFound
	}
	return addon, nil
}

func (s *memAddonStore) SaveAddon(_ context.Context, addon domain.Addon) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	if _, exists := s.byComposer[addon.ComposerName]; exists {
		return "", storage.ErrAlreadyExists
	}
	s.byComposer[addon.ComposerName] = addon
	s.byID[addon.ID] = addon
	return addon.ID, nil
}

func (s *memAddonStore) UpdateAddon(_ context.Context, id string, input domain.BasicInfoInput) error {
	addon, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	if err := addon.ApplyBasicInfo(input); err != nil {
		return err
	}
	s.byID[id] = addon
	return nil
}

func (s *memAddonStore) ListAddons(context.Context) ([]domain.Addon, error) { return nil, nil }

func (s *memAddonStore) FilterByTag(context.Context, string) ([]domain.Addon, error) {
	return nil, nil
}

func (s *memAddonStore) SearchAddons(context.Context, string) ([]domain.Addon, error) {
	return nil, nil
}

type fakeImporter struct {
	addon       domain.Addon
	addonErr    error
	versions    []domain.Version
	versionsErr error
}

func (f *fakeImporter) ImportAddon(context.Context, string) (domain.Addon, error) {
	return f.addon, f.addonErr
}

func (f *fakeImporter) ImportVersions(context.Context, string) ([]domain.Version, error) {
	return f.versions, f.versionsErr
}

func fixedFactory(imp importer.RepositoryImporter) importer.Factory {
	return importer.FactoryFunc(func(string) (importer.RepositoryImporter, error) {
		return imp, nil
	})
}

func sequentialIDs(prefix string) func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

func newTestWizard(drafts draft.Store, addons storage.AddonStore, imp importer.RepositoryImporter) *Wizard {
	return New(
		Stores{Drafts: drafts, Addons: addons},
		fixedFactory(imp),
		WithTokenGenerator(sequentialIDs("token")),
		WithIDGenerator(sequentialIDs("addon")),
	)
}

var owner = identity.Identity{UserID: "user-1", Name: "Jane Doe"}

func TestSubmitBasicInfoStartsManualDraft(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	w := newTestWizard(drafts, newMemAddonStore(), nil)

	result, err := w.SubmitBasicInfo(context.Background(), "", domain.BasicInfoInput{Name: "My Great Addon"}, owner)
	if err != nil {
		t.Fatalf("submit basic info: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a generated token")
	}
	if result.Step != StepVersionCreate {
		t.Fatalf("step = %q, want %q for manual addon", result.Step, StepVersionCreate)
	}

	stored := drafts.drafts[result.Token]
	if stored.State != draft.StateBasicInfoSet {
		t.Fatalf("state = %q, want %q", stored.State, draft.StateBasicInfoSet)
	}
	if stored.Addon.ComposerName != "jane-doe/my-great-addon" {
		t.Fatalf("composer name = %q, want derived", stored.Addon.ComposerName)
	}
}

func TestSubmitBasicInfoRepositoryLinkedRoutesToVersionImport(t *testing.T) {
	t.Parallel()

	w := newTestWizard(newMemDraftStore(), newMemAddonStore(), nil)

	input := domain.BasicInfoInput{Name: "Widget", RepositoryURL: "https://github.com/acme/widget"}
	result, err := w.SubmitBasicInfo(context.Background(), "", input, owner)
	if err != nil {
		t.Fatalf("submit basic info: %v", err)
	}
	if result.Step != StepVersionImport {
		t.Fatalf("step = %q, want %q for repository-linked addon", result.Step, StepVersionImport)
	}
}

func TestSubmitBasicInfoBlocksManualDuplicate(t *testing.T) {
	t.Parallel()

	addons := newMemAddonStore()
	addons.byComposer["jane-doe/widget"] = domain.Addon{ID: "existing", ComposerName: "jane-doe/widget"}
	drafts := newMemDraftStore()
	w := newTestWizard(drafts, addons, nil)

	result, err := w.SubmitBasicInfo(context.Background(), "", domain.BasicInfoInput{Name: "Widget"}, owner)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("error = %v, want %v", err, ErrDuplicateName)
	}
	if result.Resolution != DuplicateBlocking {
		t.Fatalf("resolution = %v, want %v", result.Resolution, DuplicateBlocking)
	}
	if len(drafts.drafts) != 0 {
		t.Fatalf("drafts stored = %d, want 0 on blocking duplicate", len(drafts.drafts))
	}
}

func TestSubmitBasicInfoRepositoryDuplicateSoftAllows(t *testing.T) {
	t.Parallel()

	addons := newMemAddonStore()
	addons.byComposer["jane-doe/widget"] = domain.Addon{ID: "existing", ComposerName: "jane-doe/widget"}
	drafts := newMemDraftStore()
	w := newTestWizard(drafts, addons, nil)

	input := domain.BasicInfoInput{Name: "Widget", RepositoryURL: "https://github.com/acme/widget"}
	result, err := w.SubmitBasicInfo(context.Background(), "", input, owner)
	if err != nil {
		t.Fatalf("submit basic info: %v", err)
	}
	if result.Resolution != DuplicateRepositoryAllowed {
		t.Fatalf("resolution = %v, want %v", result.Resolution, DuplicateRepositoryAllowed)
	}
	if result.Step != StepImport {
		t.Fatalf("step = %q, want %q", result.Step, StepImport)
	}
	if len(drafts.drafts) != 0 {
		t.Fatalf("drafts stored = %d, want 0 on soft-allowed duplicate", len(drafts.drafts))
	}
}

func TestSubmitBasicInfoPreservesVersionsOnRevisit(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateVersionsReady,
		Addon: domain.Addon{
			Name:         "Widget",
			ComposerName: "jane-doe/widget",
			OwnerID:      owner.UserID,
			Versions:     []domain.Version{{Version: "v1.0"}},
		},
	}
	w := newTestWizard(drafts, newMemAddonStore(), nil)

	input := domain.BasicInfoInput{Name: "Widget", ShortDescription: "now with a blurb"}
	result, err := w.SubmitBasicInfo(context.Background(), "tok", input, owner)
	if err != nil {
		t.Fatalf("submit basic info: %v", err)
	}
	if result.Token != "tok" {
		t.Fatalf("token = %q, want reused token", result.Token)
	}

	stored := drafts.drafts["tok"]
	if len(stored.Addon.Versions) != 1 {
		t.Fatalf("versions = %d, want preserved across revisit", len(stored.Addon.Versions))
	}
	if stored.State != draft.StateVersionsReady {
		t.Fatalf("state = %q, want %q", stored.State, draft.StateVersionsReady)
	}
	if stored.Addon.ShortDescription != "now with a blurb" {
		t.Fatalf("short description = %q, want updated", stored.Addon.ShortDescription)
	}
}

func TestSubmitBasicInfoRequiresAuthentication(t *testing.T) {
	t.Parallel()

	w := newTestWizard(newMemDraftStore(), newMemAddonStore(), nil)

	_, err := w.SubmitBasicInfo(context.Background(), "", domain.BasicInfoInput{Name: "Widget"}, identity.Identity{})
	if !errors.Is(err, ErrAuthorizationRequired) {
		t.Fatalf("error = %v, want %v", err, ErrAuthorizationRequired)
	}
}

func TestSubmitImportURLStagesPrefilledDraft(t *testing.T) {
	t.Parallel()

	imp := &fakeImporter{addon: domain.Addon{
		Name:          "widget",
		ComposerName:  "acme/widget",
		RepositoryURL: "https://github.com/acme/widget",
	}}
	drafts := newMemDraftStore()
	w := newTestWizard(drafts, newMemAddonStore(), imp)

	result, err := w.SubmitImportURL(context.Background(), "", "https://github.com/acme/widget", owner)
	if err != nil {
		t.Fatalf("submit import url: %v", err)
	}
	if result.Step != StepBasicInfo {
		t.Fatalf("step = %q, want %q for review before versions", result.Step, StepBasicInfo)
	}

	stored := drafts.drafts[result.Token]
	if stored.State != draft.StateBasicInfoSet {
		t.Fatalf("state = %q, want %q", stored.State, draft.StateBasicInfoSet)
	}
	if stored.Addon.OwnerID != owner.UserID {
		t.Fatalf("owner = %q, want claimed by importer", stored.Addon.OwnerID)
	}
}

func TestSubmitImportURLFailureLeavesDraftUntouched(t *testing.T) {
	t.Parallel()

	existing := draft.Draft{
		Token: "tok",
		State: draft.StateBasicInfoSet,
		Addon: domain.Addon{Name: "Widget", ComposerName: "jane-doe/widget", OwnerID: owner.UserID},
	}
	drafts := newMemDraftStore()
	drafts.drafts["tok"] = existing

	imp := &fakeImporter{addonErr: importer.ErrSourceUnreachable}
	w := newTestWizard(drafts, newMemAddonStore(), imp)

	result, err := w.SubmitImportURL(context.Background(), "tok", "https://github.com/acme/widget", owner)
	if !errors.Is(err, importer.ErrSourceUnreachable) {
		t.Fatalf("error = %v, want %v", err, importer.ErrSourceUnreachable)
	}
	if result.Step != StepImport {
		t.Fatalf("step = %q, want back to %q", result.Step, StepImport)
	}
	if !reflect.DeepEqual(drafts.drafts["tok"], existing) {
		t.Fatal("stored draft changed after failed import")
	}
}

func TestSubmitVersionAppendsAndAdvances(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateBasicInfoSet,
		Addon: domain.Addon{Name: "Widget", ComposerName: "jane-doe/widget", OwnerID: owner.UserID},
	}
	w := newTestWizard(drafts, newMemAddonStore(), nil)

	result, err := w.SubmitVersion(context.Background(), "tok", domain.VersionInput{Version: "1.0", License: "MIT"}, owner)
	if err != nil {
		t.Fatalf("submit version: %v", err)
	}
	if result.Step != StepFinish {
		t.Fatalf("step = %q, want %q", result.Step, StepFinish)
	}

	stored := drafts.drafts["tok"]
	if stored.State != draft.StateVersionsReady {
		t.Fatalf("state = %q, want %q", stored.State, draft.StateVersionsReady)
	}
	if len(stored.Addon.Versions) != 1 || stored.Addon.Versions[0].Version != "1.0" {
		t.Fatalf("versions = %+v, want single 1.0", stored.Addon.Versions)
	}
}

func TestSubmitVersionWithoutDraftRoutesToEntry(t *testing.T) {
	t.Parallel()

	w := newTestWizard(newMemDraftStore(), newMemAddonStore(), nil)

	result, err := w.SubmitVersion(context.Background(), "ghost", domain.VersionInput{Version: "1.0"}, owner)
	if err != nil {
		t.Fatalf("submit version: %v", err)
	}
	if result.Step != StepEntry {
		t.Fatalf("step = %q, want %q when no draft exists", result.Step, StepEntry)
	}
}

func TestImportVersionsReplacesListInSourceOrder(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateVersionsReady,
		Addon: domain.Addon{
			Name:          "Widget",
			ComposerName:  "acme/widget",
			RepositoryURL: "https://github.com/acme/widget",
			OwnerID:       owner.UserID,
			Versions:      []domain.Version{{Version: "stale"}},
		},
	}
	imp := &fakeImporter{versions: []domain.Version{
		{Version: "v1.0"}, {Version: "v1.1"}, {Version: "v0.9"},
	}}
	w := newTestWizard(drafts, newMemAddonStore(), imp)

	result, err := w.ImportVersions(context.Background(), "tok", owner)
	if err != nil {
		t.Fatalf("import versions: %v", err)
	}
	if result.Step != StepFinish {
		t.Fatalf("step = %q, want %q", result.Step, StepFinish)
	}

	stored := drafts.drafts["tok"]
	want := []string{"v1.0", "v1.1", "v0.9"}
	if len(stored.Addon.Versions) != len(want) {
		t.Fatalf("versions = %d, want %d", len(stored.Addon.Versions), len(want))
	}
	for i, version := range stored.Addon.Versions {
		if version.Version != want[i] {
			t.Fatalf("versions[%d] = %q, want %q", i, version.Version, want[i])
		}
	}
}

func TestImportVersionsFailureLeavesDraftUntouched(t *testing.T) {
	t.Parallel()

	existing := draft.Draft{
		Token: "tok",
		State: draft.StateBasicInfoSet,
		Addon: domain.Addon{
			Name:          "Widget",
			ComposerName:  "acme/widget",
			RepositoryURL: "https://github.com/acme/widget",
			OwnerID:       owner.UserID,
		},
	}
	drafts := newMemDraftStore()
	drafts.drafts["tok"] = existing

	imp := &fakeImporter{versionsErr: importer.ErrSourceUnreachable}
	w := newTestWizard(drafts, newMemAddonStore(), imp)

	result, err := w.ImportVersions(context.Background(), "tok", owner)
	if !errors.Is(err, importer.ErrSourceUnreachable) {
		t.Fatalf("error = %v, want %v", err, importer.ErrSourceUnreachable)
	}
	if result.Step != StepVersionImport {
		t.Fatalf("step = %q, want %q", result.Step, StepVersionImport)
	}
	if !reflect.DeepEqual(drafts.drafts["tok"], existing) {
		t.Fatal("stored draft changed after failed version import")
	}
}

func TestImportVersionsRejectsManualDraft(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateBasicInfoSet,
		Addon: domain.Addon{Name: "Widget", ComposerName: "jane-doe/widget", OwnerID: owner.UserID},
	}
	w := newTestWizard(drafts, newMemAddonStore(), nil)

	result, err := w.ImportVersions(context.Background(), "tok", owner)
	if !errors.Is(err, ErrNotRepositoryLinked) {
		t.Fatalf("error = %v, want %v", err, ErrNotRepositoryLinked)
	}
	if result.Step != StepVersionCreate {
		t.Fatalf("step = %q, want %q", result.Step, StepVersionCreate)
	}
}

func TestFinishCommitsAndClearsDraft(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateVersionsReady,
		Addon: domain.Addon{
			Name:         "Widget",
			ComposerName: "jane-doe/widget",
			OwnerID:      owner.UserID,
			Versions:     []domain.Version{{Version: "1.0"}},
		},
	}
	addons := newMemAddonStore()
	w := newTestWizard(drafts, addons, nil)

	result, err := w.Finish(context.Background(), "tok", owner)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if result.Step != StepDetail {
		t.Fatalf("step = %q, want %q", result.Step, StepDetail)
	}
	if result.AddonID == "" {
		t.Fatal("expected persisted addon id")
	}
	if _, ok := addons.byID[result.AddonID]; !ok {
		t.Fatal("addon not persisted under returned id")
	}
	if len(drafts.drafts) != 0 {
		t.Fatalf("drafts remaining = %d, want 0 after commit", len(drafts.drafts))
	}
}

func TestFinishReentryAfterCommitRoutesToEntry(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateVersionsReady,
		Addon: domain.Addon{
			Name:         "Widget",
			ComposerName: "jane-doe/widget",
			OwnerID:      owner.UserID,
			Versions:     []domain.Version{{Version: "1.0"}},
		},
	}
	addons := newMemAddonStore()
	w := newTestWizard(drafts, addons, nil)

	if _, err := w.Finish(context.Background(), "tok", owner); err != nil {
		t.Fatalf("finish: %v", err)
	}

	result, err := w.Finish(context.Background(), "tok", owner)
	if err != nil {
		t.Fatalf("finish re-entry: %v", err)
	}
	if result.Step != StepEntry {
		t.Fatalf("step = %q, want %q on re-entry after commit", result.Step, StepEntry)
	}
	if len(addons.byID) != 1 {
		t.Fatalf("addons persisted = %d, want 1 (no double commit)", len(addons.byID))
	}
}

func TestFinishWithoutVersionsKeepsDraft(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateBasicInfoSet,
		Addon: domain.Addon{Name: "Widget", ComposerName: "jane-doe/widget", OwnerID: owner.UserID},
	}
	w := newTestWizard(drafts, newMemAddonStore(), nil)

	result, err := w.Finish(context.Background(), "tok", owner)
	if !errors.Is(err, ErrNoVersions) {
		t.Fatalf("error = %v, want %v", err, ErrNoVersions)
	}
	if result.Step != StepVersionCreate {
		t.Fatalf("step = %q, want %q", result.Step, StepVersionCreate)
	}
	if _, ok := drafts.drafts["tok"]; !ok {
		t.Fatal("draft removed on rejected finish")
	}
}

func TestFinishPersistenceFailurePreservesDraft(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateVersionsReady,
		Addon: domain.Addon{
			Name:         "Widget",
			ComposerName: "jane-doe/widget",
			OwnerID:      owner.UserID,
			Versions:     []domain.Version{{Version: "1.0"}},
		},
	}
	addons := newMemAddonStore()
	addons.saveErr = errors.New("disk full")
	w := newTestWizard(drafts, addons, nil)

	result, err := w.Finish(context.Background(), "tok", owner)
	if err == nil {
		t.Fatal("expected commit failure")
	}
	if result.Step != StepFinish {
		t.Fatalf("step = %q, want %q for retry", result.Step, StepFinish)
	}
	if _, ok := drafts.drafts["tok"]; !ok {
		t.Fatal("draft removed on failed commit")
	}
}

func TestFinishDuplicateRaceMapsToDuplicateName(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{
		Token: "tok",
		State: draft.StateVersionsReady,
		Addon: domain.Addon{
			Name:         "Widget",
			ComposerName: "jane-doe/widget",
			OwnerID:      owner.UserID,
			Versions:     []domain.Version{{Version: "1.0"}},
		},
	}
	addons := newMemAddonStore()
	addons.byComposer["jane-doe/widget"] = domain.Addon{ID: "raced", ComposerName: "jane-doe/widget"}
	w := newTestWizard(drafts, addons, nil)

	result, err := w.Finish(context.Background(), "tok", owner)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("error = %v, want %v", err, ErrDuplicateName)
	}
	if result.Step != StepBasicInfo {
		t.Fatalf("step = %q, want %q", result.Step, StepBasicInfo)
	}
	if _, ok := drafts.drafts["tok"]; !ok {
		t.Fatal("draft removed on duplicate commit")
	}
}

func TestAbandonDeletesDraft(t *testing.T) {
	t.Parallel()

	drafts := newMemDraftStore()
	drafts.drafts["tok"] = draft.Draft{Token: "tok"}
	w := newTestWizard(drafts, newMemAddonStore(), nil)

	if err := w.Abandon(context.Background(), "tok", owner); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if len(drafts.drafts) != 0 {
		t.Fatalf("drafts remaining = %d, want 0", len(drafts.drafts))
	}
}

func TestEditUpdatesPersistedAddon(t *testing.T) {
	t.Parallel()

	addons := newMemAddonStore()
	addons.byID["addon-1"] = domain.Addon{
		ID:           "addon-1",
		Name:         "Widget",
		ComposerName: "jane-doe/widget",
		OwnerID:      owner.UserID,
		Versions:     []domain.Version{{Version: "1.0"}},
	}
	w := newTestWizard(newMemDraftStore(), addons, nil)

	input := domain.BasicInfoInput{Name: "Widget Pro", ShortDescription: "renamed"}
	if err := w.Edit(context.Background(), "addon-1", input, owner); err != nil {
		t.Fatalf("edit: %v", err)
	}

	updated := addons.byID["addon-1"]
	if updated.Name != "Widget Pro" {
		t.Fatalf("name = %q, want %q", updated.Name, "Widget Pro")
	}
	if updated.ComposerName != "jane-doe/widget" {
		t.Fatalf("composer name = %q, want unchanged by edit", updated.ComposerName)
	}
	if len(updated.Versions) != 1 {
		t.Fatalf("versions = %d, want untouched by edit", len(updated.Versions))
	}
}

func TestEditUnknownAddon(t *testing.T) {
	t.Parallel()

	w := newTestWizard(newMemDraftStore(), newMemAddonStore(), nil)

	err := w.Edit(context.Background(), "ghost", domain.BasicInfoInput{Name: "Widget"}, owner)
	if !errors.Is(err, ErrAddonNotFound) {
		t.Fatalf("error = %v, want %v", err, ErrAddonNotFound)
	}
}

func TestEditRejectsEmptyName(t *testing.T) {
	t.Parallel()

	addons := newMemAddonStore()
	addons.byID["addon-1"] = domain.Addon{ID: "addon-1", Name: "Widget", ComposerName: "jane-doe/widget"}
	w := newTestWizard(newMemDraftStore(), addons, nil)

	err := w.Edit(context.Background(), "addon-1", domain.BasicInfoInput{Name: "   "}, owner)
	if !errors.Is(err, domain.ErrEmptyName) {
		t.Fatalf("error = %v, want %v", err, domain.ErrEmptyName)
	}
}
