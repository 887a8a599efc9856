package zipper

import (
	stdzip "archive/zip"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"katalog-linkow/internal/catalog"
	"katalog-linkow/internal/manifest"
	"katalog-linkow/internal/tree"
)

var ErrNotZipLink = errors.New("refresh target must be a link pointing at a zip file")

// RefreshFromManifest rebuilds the archive a zip link points at, from
// the current state of the category its embedded manifest names, then
// re-catalogs the fresh file. A catalog failure after retries is a
// degraded success: the new zip is valid and kept, only the catalog is
// stale.
func (e *Engine) RefreshFromManifest(ctx context.Context, forest *tree.Forest, zipNode *tree.Node, password string) error {
	// A zip link is a folder link whose URL points at an archive file,
	// not at a directory.
	if zipNode == nil || zipNode.Link == nil || !zipNode.Link.IsDirectory {
		return ErrNotZipLink
	}
	zipPath := zipNode.Link.URL

	rootName, err := manifest.ReadRootCategory(zipPath, password)
	if err != nil {
		return err
	}

	// The category is usually the direct parent of the zip link; fall
	// back to a whole-tree search by name.
	categoryNode := zipNode.Parent()
	if categoryNode == nil || categoryNode.Category == nil || !strings.EqualFold(categoryNode.Name(), rootName) {
		categoryNode = forest.FindCategoryByName(rootName)
	}
	if categoryNode == nil {
		return fmt.Errorf("%w: %q", ErrCategoryNotFound, rootName)
	}

	if !e.confirm.Confirm("Refresh archive",
		fmt.Sprintf("Recreate %s from category %q?", filepath.Base(zipPath), rootName)) {
		return ErrDeclined
	}

	// Drop catalog entries pointing into the old zip and nudge the
	// runtime to release any reader handles before the file is deleted.
	catalog.RemoveEntries(zipNode)
	runtime.GC()

	if err := e.Rezip(ctx, categoryNode, filepath.Base(zipPath), filepath.Dir(zipPath), password); err != nil {
		return err
	}
	zipNode.Link.IsZipPasswordProtected = password != ""

	if err := e.catalogWithRetry(zipNode); err != nil {
		rezipDegraded.Inc()
		e.status.ReportStatus(fmt.Sprintf("Archive %s rebuilt, but cataloging failed: %v", filepath.Base(zipPath), err))
		return fmt.Errorf("%w: %v", ErrCatalogStale, err)
	}
	return nil
}

// catalogWithRetry re-catalogs a freshly written zip. Only the three
// known transient conditions are retried (bounded, exponential backoff);
// anything else fails immediately.
func (e *Engine) catalogWithRetry(zipNode *tree.Node) error {
	return e.retryTransient(func() error { return e.builder.Refresh(zipNode) })
}

func (e *Engine) retryTransient(refresh func() error) error {
	policy := backoff.WithMaxRetries(newExponential(e.cfg.CatalogBackoff), uint64(e.cfg.CatalogRetries-1))

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			rezipRetries.Inc()
		}
		err := refresh()
		if err == nil {
			return nil
		}
		if !isTransientZipError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func newExponential(initial time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return b
}

// isTransientZipError matches the conditions a just-written zip can
// show while another process still holds it: missing central directory,
// generally invalid data, or a straight file lock.
func isTransientZipError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, stdzip.ErrFormat) || errors.Is(err, stdzip.ErrChecksum) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "central directory") ||
		strings.Contains(msg, "invalid data") ||
		strings.Contains(msg, "not a valid zip") ||
		strings.Contains(msg, "used by another process") ||
		strings.Contains(msg, "resource temporarily unavailable") ||
		strings.Contains(msg, "device or resource busy")
}
