package domain

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyName indicates a missing addon name.
	ErrEmptyName = errors.New("addon name is required")
	// ErrEmptyOwner indicates a missing owner identity.
	ErrEmptyOwner = errors.New("addon owner is required")
)

// Addon represents a catalog entry in progress or persisted.
type Addon struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name"`
	ShortDescription string `json:"short_description,omitempty"`
	Description      string `json:"description,omitempty"`
	DemoURL          string `json:"demo_url,omitempty"`
	// RepositoryURL marks the addon as repository-linked when non-empty.
	RepositoryURL string `json:"repository_url,omitempty"`
	// ComposerName is the canonical package identifier. It is derived from
	// the owner and display name unless an import set it explicitly.
	ComposerName string    `json:"composer_name"`
	OwnerID      string    `json:"owner_id"`
	Versions     []Version `json:"versions,omitempty"`
}

// BasicInfoInput carries the fields of the basic-info step. The form layer
// validates formats before this package sees them.
type BasicInfoInput struct {
	Name             string
	ShortDescription string
	Description      string
	DemoURL          string
	RepositoryURL    string
}

// NewAddon builds an addon aggregate from basic-info fields. The composer
// name is derived from the vendor and display name when the input carries
// none, so it is always set before any duplicate check runs.
func NewAddon(input BasicInfoInput, ownerID, vendor string) (Addon, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Addon{}, ErrEmptyOwner
	}

	addon := Addon{OwnerID: ownerID}
	if err := addon.ApplyBasicInfo(input); err != nil {
		return Addon{}, err
	}
	addon.ComposerName = DeriveComposerName(vendor, addon.Name)
	return addon, nil
}

// ApplyBasicInfo overwrites the basic-info fields, preserving versions,
// composer name, and ownership.
func (a *Addon) ApplyBasicInfo(input BasicInfoInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ErrEmptyName
	}
	a.Name = name
	a.ShortDescription = strings.TrimSpace(input.ShortDescription)
	a.Description = strings.TrimSpace(input.Description)
	a.DemoURL = strings.TrimSpace(input.DemoURL)
	if repository := strings.TrimSpace(input.RepositoryURL); repository != "" {
		a.RepositoryURL = repository
	}
	return nil
}

// RepositoryLinked reports whether the addon's versions originate from an
// external source-code repository.
func (a Addon) RepositoryLinked() bool {
	return strings.TrimSpace(a.RepositoryURL) != ""
}

// AppendVersion adds a version to the pending list. Versions are
// append-only within a draft.
func (a *Addon) AppendVersion(version Version) {
	a.Versions = append(a.Versions, version)
}

// DeriveComposerName builds the canonical package identifier from a vendor
// and a display name. The derivation is deterministic: both parts are
// lowercased and runs of non-alphanumeric characters collapse to a single
// hyphen.
func DeriveComposerName(vendor, name string) string {
	return slug(vendor) + "/" + slug(name)
}

func slug(value string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
