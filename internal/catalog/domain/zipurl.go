package domain

import "strings"

// ZipURL derives the download URL for one version of an addon. The URL is
// recomputed on every request, never stored. Repository-linked addons
// resolve to the repository's zipball endpoint; manual addons resolve to
// the uploaded artifact under the configured base URL.
func ZipURL(addon Addon, version Version, uploadBaseURL string) string {
	if addon.RepositoryLinked() {
		return addon.RepositoryURL + "/zipball/" + version.Version
	}
	return strings.TrimRight(uploadBaseURL, "/") + "/" + version.Filename
}
