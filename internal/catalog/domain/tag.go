package domain

// Tag labels a persisted addon. Tags are many-to-many with addons and
// matter to the browsing surface, not to the creation wizard.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}
