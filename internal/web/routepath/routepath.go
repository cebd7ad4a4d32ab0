// Package routepath centralizes the URL paths served by the portal.
package routepath

const (
	// Session issues and clears sign-in cookies.
	Session = "/session"

	// Addons lists the catalog; tag and q query parameters filter it.
	Addons = "/addons"
	// AddonDetail shows one addon with versions, tags, and download URLs.
	AddonDetail = "/addons/{id}"
	// AddonZip redirects to the derived download URL of one version.
	AddonZip = "/addons/{id}/versions/{version}/zip"
	// Tags lists all known tags.
	Tags = "/tags"

	// ManageBasicInfo is the wizard's basic-info transition.
	ManageBasicInfo = "/manage/addon"
	// ManageImport is the wizard's repository-import transition.
	ManageImport = "/manage/import"
	// ManageVersion is the wizard's manual-version transition.
	ManageVersion = "/manage/versions"
	// ManageVersionImport is the wizard's version-import transition.
	ManageVersionImport = "/manage/versions/import"
	// ManageFinish commits the draft to the catalog.
	ManageFinish = "/manage/finish"
	// ManageAbandon deletes the draft.
	ManageAbandon = "/manage/abandon"
	// ManageEdit updates a persisted addon's basic info.
	ManageEdit = "/manage/addons/{id}/edit"
)

// AddonDetailFor builds the detail path for an addon ID.
func AddonDetailFor(id string) string {
	return "/addons/" + id
}
