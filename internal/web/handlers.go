// Package web exposes the addon catalog and the creation wizard over
// HTTP. Responses are JSON; wizard transitions report the next step and
// session token so clients can resume mid-flow.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/addonbay/portal/internal/catalog/domain"
	"github.com/addonbay/portal/internal/catalog/importer"
	"github.com/addonbay/portal/internal/catalog/storage"
	"github.com/addonbay/portal/internal/catalog/wizard"
	"github.com/addonbay/portal/internal/identity"
	"github.com/addonbay/portal/internal/web/platform/flash"
	"github.com/addonbay/portal/internal/web/platform/sessioncookie"
)

// WizardService is the subset of the wizard used by the manage routes.
type WizardService interface {
	SubmitBasicInfo(ctx context.Context, token string, input domain.BasicInfoInput, owner identity.Identity) (wizard.Result, error)
	SubmitImportURL(ctx context.Context, token, sourceURL string, owner identity.Identity) (wizard.Result, error)
	SubmitVersion(ctx context.Context, token string, input domain.VersionInput, owner identity.Identity) (wizard.Result, error)
	ImportVersions(ctx context.Context, token string, owner identity.Identity) (wizard.Result, error)
	Finish(ctx context.Context, token string, owner identity.Identity) (wizard.Result, error)
	Abandon(ctx context.Context, token string, owner identity.Identity) error
	Edit(ctx context.Context, addonID string, input domain.BasicInfoInput, owner identity.Identity) error
}

type handlers struct {
	wizard        WizardService
	addons        storage.AddonStore
	tags          storage.TagStore
	verifier      *identity.Verifier
	uploadBaseURL string
}

// wizardResponse reports where a transition landed.
type wizardResponse struct {
	Token   string `json:"token"`
	Next    string `json:"next"`
	AddonID string `json:"addon_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h handlers) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	ident := identity.Identity{
		UserID: strings.TrimSpace(r.PostFormValue("user_id")),
		Name:   strings.TrimSpace(r.PostFormValue("name")),
	}
	token, err := h.verifier.Issue(ident)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	sessioncookie.Write(w, r, token)
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": ident.UserID})
}

func (h handlers) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	sessioncookie.Clear(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h handlers) handleBasicInfo(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	input := domain.BasicInfoInput{
		Name:             r.PostFormValue("name"),
		ShortDescription: r.PostFormValue("short_description"),
		Description:      r.PostFormValue("description"),
		DemoURL:          r.PostFormValue("demo_url"),
		RepositoryURL:    r.PostFormValue("repository_url"),
	}
	result, err := h.wizard.SubmitBasicInfo(r.Context(), r.PostFormValue("token"), input, owner)
	if err != nil {
		h.writeWizardError(w, err)
		return
	}
	if result.Resolution == wizard.DuplicateRepositoryAllowed {
		flash.Write(w, flash.NoticeInfo("addon already exists; import a new version instead"))
	}
	writeJSON(w, http.StatusOK, wizardResult(result))
}

func (h handlers) handleImport(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	result, err := h.wizard.SubmitImportURL(r.Context(), r.PostFormValue("token"), r.PostFormValue("url"), owner)
	if err != nil {
		h.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wizardResult(result))
}

func (h handlers) handleVersion(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	input := domain.VersionInput{
		Version:  r.PostFormValue("version"),
		License:  r.PostFormValue("license"),
		Filename: r.PostFormValue("filename"),
	}
	result, err := h.wizard.SubmitVersion(r.Context(), r.PostFormValue("token"), input, owner)
	if err != nil {
		h.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wizardResult(result))
}

func (h handlers) handleVersionImport(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	result, err := h.wizard.ImportVersions(r.Context(), r.PostFormValue("token"), owner)
	if err != nil {
		h.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wizardResult(result))
}

func (h handlers) handleFinish(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	result, err := h.wizard.Finish(r.Context(), r.PostFormValue("token"), owner)
	if err != nil {
		h.writeWizardError(w, err)
		return
	}
	if result.Step == wizard.StepDetail {
		flash.Write(w, flash.NoticeSuccess("addon published"))
	}
	writeJSON(w, http.StatusOK, wizardResult(result))
}

func (h handlers) handleAbandon(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	if err := h.wizard.Abandon(r.Context(), r.PostFormValue("token"), owner); err != nil {
		h.writeWizardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h handlers) handleEdit(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	input := domain.BasicInfoInput{
		Name:             r.PostFormValue("name"),
		ShortDescription: r.PostFormValue("short_description"),
		Description:      r.PostFormValue("description"),
		DemoURL:          r.PostFormValue("demo_url"),
		RepositoryURL:    r.PostFormValue("repository_url"),
	}
	if err := h.wizard.Edit(r.Context(), r.PathValue("id"), input, owner); err != nil {
		h.writeWizardError(w, err)
		return
	}
	flash.Write(w, flash.NoticeSuccess("addon updated"))
	w.WriteHeader(http.StatusNoContent)
}

// addonView is the browse-facing shape of an addon.
type addonView struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ShortDescription string        `json:"short_description,omitempty"`
	Description      string        `json:"description,omitempty"`
	DemoURL          string        `json:"demo_url,omitempty"`
	RepositoryURL    string        `json:"repository_url,omitempty"`
	ComposerName     string        `json:"composer_name"`
	Versions         []versionView `json:"versions,omitempty"`
	Tags             []domain.Tag  `json:"tags,omitempty"`
}

type versionView struct {
	Version string `json:"version"`
	License string `json:"license,omitempty"`
	ZipURL  string `json:"zip_url"`
}

type addonListResponse struct {
	Addons []addonView `json:"addons"`
}

type addonDetailResponse struct {
	addonView
	Notice *flash.Notice `json:"notice,omitempty"`
}

func (h handlers) handleAddonList(w http.ResponseWriter, r *http.Request) {
	var (
		addons []domain.Addon
		err    error
	)
	switch {
	case strings.TrimSpace(r.URL.Query().Get("tag")) != "":
		addons, err = h.addons.FilterByTag(r.Context(), strings.TrimSpace(r.URL.Query().Get("tag")))
	case strings.TrimSpace(r.URL.Query().Get("q")) != "":
		addons, err = h.addons.SearchAddons(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	default:
		addons, err = h.addons.ListAddons(r.Context())
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}

	views := make([]addonView, 0, len(addons))
	for _, addon := range addons {
		views = append(views, h.viewOf(addon, nil))
	}
	writeJSON(w, http.StatusOK, addonListResponse{Addons: views})
}

func (h handlers) handleAddonDetail(w http.ResponseWriter, r *http.Request) {
	addon, err := h.addons.GetAddon(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "addon not found")
			return
		}
		writeInternalError(w, err)
		return
	}

	tags, err := h.tags.AddonTags(r.Context(), addon.ID)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	response := addonDetailResponse{addonView: h.viewOf(addon, tags)}
	if notice, ok := flash.ReadAndClear(w, r); ok {
		response.Notice = &notice
	}
	writeJSON(w, http.StatusOK, response)
}

func (h handlers) handleAddonZip(w http.ResponseWriter, r *http.Request) {
	addon, err := h.addons.GetAddon(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "addon not found")
			return
		}
		writeInternalError(w, err)
		return
	}

	requested := r.PathValue("version")
	for _, version := range addon.Versions {
		if version.Version == requested {
			http.Redirect(w, r, domain.ZipURL(addon, version, h.uploadBaseURL), http.StatusFound)
			return
		}
	}
	writeError(w, http.StatusNotFound, "version not found")
}

func (h handlers) handleTagList(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.ListTags(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Tag{"tags": tags})
}

func (h handlers) viewOf(addon domain.Addon, tags []domain.Tag) addonView {
	view := addonView{
		ID:               addon.ID,
		Name:             addon.Name,
		ShortDescription: addon.ShortDescription,
		Description:      addon.Description,
		DemoURL:          addon.DemoURL,
		RepositoryURL:    addon.RepositoryURL,
		ComposerName:     addon.ComposerName,
		Tags:             tags,
	}
	for _, version := range addon.Versions {
		view.Versions = append(view.Versions, versionView{
			Version: version.Version,
			License: version.License,
			ZipURL:  domain.ZipURL(addon, version, h.uploadBaseURL),
		})
	}
	return view
}

func (h handlers) requireIdentity(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	raw, ok := sessioncookie.Read(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return identity.Identity{}, false
	}
	ident, err := h.verifier.Verify(raw)
	if err != nil {
		sessioncookie.Clear(w, r)
		writeError(w, http.StatusUnauthorized, "sign in required")
		return identity.Identity{}, false
	}
	return ident, true
}

// writeWizardError maps transition failures to HTTP statuses. Validation
// and flow violations are 422, name collisions 409, upstream repository
// trouble 502.
func (h handlers) writeWizardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wizard.ErrAuthorizationRequired):
		writeError(w, http.StatusUnauthorized, "sign in required")
	case errors.Is(err, wizard.ErrDuplicateName):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wizard.ErrAddonNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wizard.ErrNoVersions),
		errors.Is(err, wizard.ErrNotRepositoryLinked),
		errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrEmptyVersion),
		errors.Is(err, importer.ErrFormatInvalid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, importer.ErrSourceUnreachable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeInternalError(w, err)
	}
}

func wizardResult(result wizard.Result) wizardResponse {
	return wizardResponse{
		Token:   result.Token,
		Next:    string(result.Step),
		AddonID: result.AddonID,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Printf("request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
