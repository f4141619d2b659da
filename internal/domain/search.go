package domain

// Search is one configured query. Read-only at runtime.
type Search struct {
	// Name is the user-facing key, unique across the configuration.
	// It is also the key of the persisted snapshot.
	Name string

	// URL of the entry page.
	URL string

	// Recursive enables following "next page" links beyond the entry page.
	Recursive bool
}
