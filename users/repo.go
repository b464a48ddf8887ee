package users

// Repo supplies the externally managed username to password entries.
type Repo interface {
	// Load returns the current entries. A missing source yields an empty map, not an error.
	Load() (map[string]string, error)
}
