package collab

import "katalog-linkow/internal/tree"

// The core consumes its surroundings through these narrow contracts.
// The API layer provides the real implementations; tests plug in fakes.

// PasswordProvider hands out the plaintext password for a protected
// category, or false when none is available for this session.
type PasswordProvider interface {
	PasswordForCategory(category *tree.Node) (string, bool)
}

// Confirmer asks the caller to approve an irreversible operation.
type Confirmer interface {
	Confirm(title, message string) bool
}

// StatusReporter surfaces progress text to whoever is watching.
type StatusReporter interface {
	ReportStatus(text string)
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TagRegistry resolves tag IDs carried on categories and links. Tag
// management itself lives outside the core.
type TagRegistry interface {
	TagByID(id int64) (Tag, bool)
}

// StaticTags is a fixed in-memory registry.
type StaticTags map[int64]Tag

func (s StaticTags) TagByID(id int64) (Tag, bool) {
	tag, ok := s[id]
	return tag, ok
}

// NopReporter discards status text. Useful as a default.
type NopReporter struct{}

func (NopReporter) ReportStatus(string) {}

// AutoConfirm approves everything. Used by tests and batch callers that
// already gathered consent up front.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(string, string) bool { return true }
