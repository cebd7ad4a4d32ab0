package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/addonbay/portal/internal/catalog/domain"
	"github.com/addonbay/portal/internal/catalog/draft"
	"github.com/addonbay/portal/internal/catalog/importer"
	"github.com/addonbay/portal/internal/catalog/storage"
	"github.com/addonbay/portal/internal/id"
	"github.com/addonbay/portal/internal/identity"
)

var (
	// ErrAuthorizationRequired indicates no authenticated user; the wizard
	// refuses to start or continue any transition.
	ErrAuthorizationRequired = errors.New("authorization required")
	// ErrDuplicateName indicates a blocking composer-name collision on the
	// basic-info step.
	ErrDuplicateName = errors.New("addon with the same composer package already exists")
	// ErrNoVersions indicates a finish attempt with zero staged versions.
	ErrNoVersions = errors.New("addon has no versions")
	// ErrNotRepositoryLinked indicates a version-import request for a
	// draft without a repository.
	ErrNotRepositoryLinked = errors.New("draft is not repository-linked")
	// ErrAddonNotFound indicates an edit request for an unknown addon.
	ErrAddonNotFound = errors.New("addon not found")
)

// Step names the screen the caller should show next.
type Step string

const (
	// StepEntry is the addon-creation entry point; shown when a transition
	// found no draft to act on.
	StepEntry Step = "entry"
	// StepBasicInfo is the basic-info form.
	StepBasicInfo Step = "basic_info"
	// StepImport is the import-URL form.
	StepImport Step = "import"
	// StepVersionCreate is the manual version form.
	StepVersionCreate Step = "version_create"
	// StepVersionImport is the version-import confirmation.
	StepVersionImport Step = "version_import"
	// StepFinish is the finish confirmation.
	StepFinish Step = "finish"
	// StepDetail is the persisted addon's detail page; terminal.
	StepDetail Step = "detail"
)

// Result reports where a transition landed.
type Result struct {
	// Token identifies the wizard session, generated on first use.
	Token string
	// Step is the next screen.
	Step Step
	// Resolution is set by the basic-info transition.
	Resolution DuplicateResolution
	// AddonID is set when Step is StepDetail.
	AddonID string
}

// Stores groups the persistence collaborators of the wizard.
type Stores struct {
	Drafts draft.Store
	Addons storage.AddonStore
}

// Wizard drives the five-step addon creation flow.
type Wizard struct {
	stores        Stores
	importers     importer.Factory
	importTimeout time.Duration
	newToken      func() (string, error)
	newID         func() (string, error)
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithImportTimeout bounds each call into the import orchestrator.
func WithImportTimeout(d time.Duration) Option {
	return func(w *Wizard) {
		w.importTimeout = d
	}
}

// WithTokenGenerator overrides session token generation.
func WithTokenGenerator(fn func() (string, error)) Option {
	return func(w *Wizard) {
		w.newToken = fn
	}
}

// WithIDGenerator overrides persisted addon ID generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(w *Wizard) {
		w.newID = fn
	}
}

// New creates a Wizard with default token and ID generation and a 30s
// import timeout.
func New(stores Stores, importers importer.Factory, opts ...Option) *Wizard {
	w := &Wizard{
		stores:        stores,
		importers:     importers,
		importTimeout: 30 * time.Second,
		newToken:      id.NewToken,
		newID:         id.NewID,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SubmitBasicInfo handles the basic-info step for manual and prefilled
// drafts. On a blocking duplicate the draft store is left untouched; on a
// repository-allowed duplicate the draft is unset and the caller is routed
// to the import entry.
func (w *Wizard) SubmitBasicInfo(ctx context.Context, token string, input domain.BasicInfoInput, owner identity.Identity) (Result, error) {
	token, err := w.requireToken(token, owner)
	if err != nil {
		return Result{}, err
	}

	addon, found, err := w.loadDraftAddon(ctx, token)
	if err != nil {
		return Result{}, err
	}

	if found {
		if err := addon.ApplyBasicInfo(input); err != nil {
			return Result{Token: token, Step: StepBasicInfo}, err
		}
		addon.OwnerID = owner.UserID
	} else {
		addon, err = domain.NewAddon(input, owner.UserID, vendorFor(owner))
		if err != nil {
			return Result{Token: token, Step: StepBasicInfo}, err
		}
	}
	// Imports may leave the composer name unset; derive before the
	// duplicate check so the check always has an identifier to match on.
	if addon.ComposerName == "" {
		addon.ComposerName = domain.DeriveComposerName(vendorFor(owner), addon.Name)
	}

	resolution, err := ResolveDuplicate(ctx, w.stores.Addons, addon)
	if err != nil {
		return Result{}, err
	}
	switch resolution {
	case DuplicateBlocking:
		return Result{Token: token, Step: StepBasicInfo, Resolution: resolution}, ErrDuplicateName
	case DuplicateRepositoryAllowed:
		if err := w.stores.Drafts.Delete(ctx, token); err != nil {
			return Result{}, fmt.Errorf("unset draft: %w", err)
		}
		return Result{Token: token, Step: StepImport, Resolution: resolution}, nil
	}

	state := draft.StateBasicInfoSet
	if len(addon.Versions) > 0 {
		state = draft.StateVersionsReady
	}
	if err := w.stores.Drafts.Put(ctx, draft.Draft{Token: token, State: state, Addon: addon}); err != nil {
		return Result{}, fmt.Errorf("store draft: %w", err)
	}

	next := StepVersionCreate
	if addon.RepositoryLinked() {
		next = StepVersionImport
	}
	return Result{Token: token, Step: next, Resolution: Unique}, nil
}

// SubmitImportURL imports addon metadata from a repository URL and stages
// it as the draft. On failure any previously stored draft is left exactly
// as it was.
func (w *Wizard) SubmitImportURL(ctx context.Context, token, sourceURL string, owner identity.Identity) (Result, error) {
	token, err := w.requireToken(token, owner)
	if err != nil {
		return Result{}, err
	}

	backend, err := w.importers.ImporterFor(sourceURL)
	if err != nil {
		return Result{Token: token, Step: StepImport}, fmt.Errorf("select importer: %w", err)
	}

	importCtx, cancel := context.WithTimeout(ctx, w.importTimeout)
	defer cancel()
	addon, err := backend.ImportAddon(importCtx, sourceURL)
	if err != nil {
		return Result{Token: token, Step: StepImport}, err
	}

	if !addon.RepositoryLinked() {
		normalized, err := importer.NormalizeRepositoryURL(sourceURL)
		if err != nil {
			return Result{Token: token, Step: StepImport}, err
		}
		addon.RepositoryURL = normalized
	}
	addon.OwnerID = owner.UserID

	d := draft.Draft{Token: token, State: draft.StateBasicInfoSet, Addon: addon}
	if err := w.stores.Drafts.Put(ctx, d); err != nil {
		return Result{}, fmt.Errorf("store draft: %w", err)
	}

	// The basic-info form is shown next, prefilled from the import, so the
	// user can review before versions are pulled.
	return Result{Token: token, Step: StepBasicInfo}, nil
}

// SubmitVersion appends one manually entered version to the draft.
func (w *Wizard) SubmitVersion(ctx context.Context, token string, input domain.VersionInput, owner identity.Identity) (Result, error) {
	token, err := w.requireToken(token, owner)
	if err != nil {
		return Result{}, err
	}

	d, err := w.stores.Drafts.Get(ctx, token)
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return Result{Token: token, Step: StepEntry}, nil
		}
		return Result{}, fmt.Errorf("load draft: %w", err)
	}

	version, err := domain.NewVersion(input)
	if err != nil {
		return Result{Token: token, Step: StepVersionCreate}, err
	}

	d.Addon.AppendVersion(version)
	d.State = draft.StateVersionsReady
	if err := w.stores.Drafts.Put(ctx, d); err != nil {
		return Result{}, fmt.Errorf("store draft: %w", err)
	}
	return Result{Token: token, Step: StepFinish}, nil
}

// ImportVersions replaces the draft's version list with the repository's
// published tags. On import failure the stored draft is untouched.
func (w *Wizard) ImportVersions(ctx context.Context, token string, owner identity.Identity) (Result, error) {
	token, err := w.requireToken(token, owner)
	if err != nil {
		return Result{}, err
	}

	d, err := w.stores.Drafts.Get(ctx, token)
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return Result{Token: token, Step: StepEntry}, nil
		}
		return Result{}, fmt.Errorf("load draft: %w", err)
	}
	if !d.Addon.RepositoryLinked() {
		return Result{Token: token, Step: StepVersionCreate}, ErrNotRepositoryLinked
	}

	backend, err := w.importers.ImporterFor(d.Addon.RepositoryURL)
	if err != nil {
		return Result{Token: token, Step: StepVersionImport}, fmt.Errorf("select importer: %w", err)
	}

	importCtx, cancel := context.WithTimeout(ctx, w.importTimeout)
	defer cancel()
	versions, err := backend.ImportVersions(importCtx, d.Addon.RepositoryURL)
	if err != nil {
		return Result{Token: token, Step: StepVersionImport}, err
	}

	d.Addon.Versions = versions
	d.State = draft.StateVersionsReady
	if err := w.stores.Drafts.Put(ctx, d); err != nil {
		return Result{}, fmt.Errorf("store draft: %w", err)
	}
	return Result{Token: token, Step: StepFinish}, nil
}

// Finish commits the draft to the catalog. With no draft present it routes
// back to the entry point, which makes re-entering finish after a
// successful commit harmless. On persistence failure the draft survives so
// the user can retry without re-entering data.
func (w *Wizard) Finish(ctx context.Context, token string, owner identity.Identity) (Result, error) {
	token, err := w.requireToken(token, owner)
	if err != nil {
		return Result{}, err
	}

	d, err := w.stores.Drafts.Get(ctx, token)
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return Result{Token: token, Step: StepEntry}, nil
		}
		return Result{}, fmt.Errorf("load draft: %w", err)
	}

	if len(d.Addon.Versions) == 0 {
		return Result{Token: token, Step: StepVersionCreate}, ErrNoVersions
	}

	addonID, err := w.newID()
	if err != nil {
		return Result{}, fmt.Errorf("generate addon id: %w", err)
	}
	d.Addon.ID = addonID
	d.Addon.OwnerID = owner.UserID

	persistedID, err := w.stores.Addons.SaveAddon(ctx, d.Addon)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return Result{Token: token, Step: StepBasicInfo}, ErrDuplicateName
		}
		return Result{Token: token, Step: StepFinish}, fmt.Errorf("commit addon: %w", err)
	}

	// The commit landed; a failed cleanup must not undo that. The TTL
	// sweep reclaims the draft if this delete is lost.
	_ = w.stores.Drafts.Delete(ctx, token)

	return Result{Token: token, Step: StepDetail, AddonID: persistedID}, nil
}

// Abandon deletes the draft immediately instead of waiting for TTL
// eviction.
func (w *Wizard) Abandon(ctx context.Context, token string, owner identity.Identity) error {
	if owner.UserID == "" {
		return ErrAuthorizationRequired
	}
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return w.stores.Drafts.Delete(ctx, token)
}

// Edit is the separate single-step flow for already-persisted addons: it
// loads by identifier, revalidates the basic-info fields, and writes
// through immediately with no draft store involvement. The duplicate
// resolver is bypassed; the storage uniqueness constraint still applies.
func (w *Wizard) Edit(ctx context.Context, addonID string, input domain.BasicInfoInput, owner identity.Identity) error {
	if owner.UserID == "" {
		return ErrAuthorizationRequired
	}

	if _, err := w.stores.Addons.GetAddon(ctx, addonID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrAddonNotFound
		}
		return fmt.Errorf("load addon: %w", err)
	}

	if strings.TrimSpace(input.Name) == "" {
		return domain.ErrEmptyName
	}
	if err := w.stores.Addons.UpdateAddon(ctx, addonID, input); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrAddonNotFound
		}
		return fmt.Errorf("update addon: %w", err)
	}
	return nil
}

func (w *Wizard) requireToken(token string, owner identity.Identity) (string, error) {
	if owner.UserID == "" {
		return "", ErrAuthorizationRequired
	}
	token = strings.TrimSpace(token)
	if token != "" {
		return token, nil
	}
	generated, err := w.newToken()
	if err != nil {
		return "", fmt.Errorf("generate wizard token: %w", err)
	}
	return generated, nil
}

func (w *Wizard) loadDraftAddon(ctx context.Context, token string) (domain.Addon, bool, error) {
	d, err := w.stores.Drafts.Get(ctx, token)
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return domain.Addon{}, false, nil
		}
		return domain.Addon{}, false, fmt.Errorf("load draft: %w", err)
	}
	return d.Addon, true, nil
}

func vendorFor(owner identity.Identity) string {
	if owner.Name != "" {
		return owner.Name
	}
	return owner.UserID
}
