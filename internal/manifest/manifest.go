package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FileName is always the first entry of a generated archive.
const FileName = "_MANIFEST.txt"

var ErrNoRootCategory = errors.New("manifest does not name a root category")

// The only machine-parsed line. Everything else in the manifest is an
// informational audit trail.
var rootCategoryLine = regexp.MustCompile(`(?m)^Root Category: (.+)$`)

// FolderEntry describes one folder link included in an archive.
type FolderEntry struct {
	Title        string
	Path         string
	Description  string
	CategoryPath string
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// Generate renders the manifest text for an archive produced from
// rootCategory. Entries are grouped by the category path they live
// under, in first-seen order.
func Generate(rootCategory string, entries []FolderEntry) string {
	var b strings.Builder
	b.WriteString("Link Catalog Archive Manifest\n")
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "Root Category: %s\n", rootCategory)
	fmt.Fprintf(&b, "Folders: %d\n", len(entries))

	var order []string
	grouped := make(map[string][]FolderEntry)
	for _, e := range entries {
		if _, seen := grouped[e.CategoryPath]; !seen {
			order = append(order, e.CategoryPath)
		}
		grouped[e.CategoryPath] = append(grouped[e.CategoryPath], e)
	}

	for _, categoryPath := range order {
		fmt.Fprintf(&b, "\n[Category: %s]\n", categoryPath)
		for _, e := range grouped[categoryPath] {
			fmt.Fprintf(&b, "Title: %s\n", e.Title)
			fmt.Fprintf(&b, "Path: %s\n", e.Path)
			if e.Description != "" {
				fmt.Fprintf(&b, "Description: %s\n", e.Description)
			}
			fmt.Fprintf(&b, "Created: %s\n", e.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(&b, "Modified: %s\n", e.ModifiedAt.Format(time.RFC3339))
		}
	}

	return b.String()
}

// ParseRootCategory extracts the category name an archive was produced
// from. Only the single "Root Category:" line is parsed back.
func ParseRootCategory(text string) (string, bool) {
	m := rootCategoryLine.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", false
	}
	return name, true
}
