package zipper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/yeka/zip"

	"katalog-linkow/internal/catalog"
	"katalog-linkow/internal/collab"
	"katalog-linkow/internal/manifest"
	"katalog-linkow/internal/tree"
)

var (
	ErrZipInvalid       = errors.New("generated archive is invalid or truncated")
	ErrNotCategory      = errors.New("rezip target must be a category node")
	ErrTargetLocked     = errors.New("target file stayed locked after retries")
	ErrCategoryNotFound = errors.New("category named by the manifest does not exist")
	ErrDeclined         = errors.New("operation declined by caller")
	// ErrCatalogStale marks a degraded success: the archive was written
	// and kept, but re-cataloging it failed after retries.
	ErrCatalogStale = errors.New("archive created but catalog could not be rebuilt")
)

// minZipSize is the size of an empty zip's end-of-central-directory
// record; anything smaller cannot be a valid archive.
const minZipSize = 22

var (
	rezipTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "katalog_rezip_total",
		Help: "Completed archive re-creation runs.",
	})
	rezipRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "katalog_rezip_retries_total",
		Help: "Retry attempts while deleting or re-cataloging archives.",
	})
	rezipDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "katalog_rezip_degraded_total",
		Help: "Rezip runs that ended as degraded success (catalog stale).",
	})
)

// Config carries the retry knobs. The defaults match the filesystem
// environments the constants were tuned for; they are settings, not
// invariants.
type Config struct {
	DeleteRetries    int
	DeleteRetryDelay time.Duration
	CatalogRetries   int
	CatalogBackoff   time.Duration
}

func DefaultConfig() Config {
	return Config{
		DeleteRetries:    3,
		DeleteRetryDelay: 500 * time.Millisecond,
		CatalogRetries:   3,
		CatalogBackoff:   500 * time.Millisecond,
	}
}

// Engine re-creates zip archives from the current state of a category's
// folder links.
type Engine struct {
	builder *catalog.Builder
	confirm collab.Confirmer
	status  collab.StatusReporter
	cfg     Config
}

func NewEngine(builder *catalog.Builder, confirm collab.Confirmer, status collab.StatusReporter, cfg Config) *Engine {
	if status == nil {
		status = collab.NopReporter{}
	}
	if confirm == nil {
		confirm = collab.AutoConfirm{}
	}
	return &Engine{builder: builder, confirm: confirm, status: status, cfg: cfg}
}

// collectFolders gathers every folder-link descendant that is not a
// catalog entry and whose target directory actually exists.
func collectFolders(categoryNode *tree.Node) []manifest.FolderEntry {
	var entries []manifest.FolderEntry
	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		if link := n.Link; link != nil && link.IsDirectory && !link.IsCatalogEntry {
			if info, err := os.Stat(link.URL); err == nil && info.IsDir() {
				entries = append(entries, manifest.FolderEntry{
					Title:        link.Title,
					Path:         link.URL,
					Description:  link.Description,
					CategoryPath: n.AncestorPath(),
					CreatedAt:    link.CreatedAt,
					ModifiedAt:   link.ModifiedAt,
				})
			}
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(categoryNode)
	return entries
}

// Rezip rebuilds the archive for categoryNode at targetDir/fileName.
// The manifest entry is always written first. A non-empty password
// switches every entry to AES-256 encryption.
func (e *Engine) Rezip(ctx context.Context, categoryNode *tree.Node, fileName, targetDir, password string) error {
	if categoryNode == nil || !categoryNode.IsCategory() {
		return ErrNotCategory
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries := collectFolders(categoryNode)
	manifestText := manifest.Generate(categoryNode.Name(), entries)
	target := filepath.Join(targetDir, fileName)

	e.status.ReportStatus(fmt.Sprintf("Archiving %d folders from %q", len(entries), categoryNode.Name()))

	if err := e.deleteWithRetry(target); err != nil {
		return err
	}
	if err := e.writeZip(target, manifestText, entries, password); err != nil {
		return err
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrZipInvalid, err)
	}
	if info.Size() < minZipSize {
		return fmt.Errorf("%w: %d bytes", ErrZipInvalid, info.Size())
	}

	rezipTotal.Inc()
	e.status.ReportStatus(fmt.Sprintf("Archive %s written (%d bytes)", fileName, info.Size()))
	return nil
}

// deleteWithRetry removes a pre-existing target, retrying a bounded
// number of times on a locked file. Lingering readers hold the old
// archive open through finalizers, so force a GC pass between attempts.
func (e *Engine) deleteWithRetry(target string) error {
	var lastErr error
	for attempt := 0; attempt < e.cfg.DeleteRetries; attempt++ {
		if attempt > 0 {
			rezipRetries.Inc()
			runtime.GC()
			time.Sleep(e.cfg.DeleteRetryDelay)
		}
		err := os.Remove(target)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		lastErr = err
		log.Printf("WARN: Attempt %d to delete %s failed: %v", attempt+1, target, err)
	}
	return fmt.Errorf("%w: %v", ErrTargetLocked, lastErr)
}

func (e *Engine) writeZip(target, manifestText string, entries []manifest.FolderEntry, password string) error {
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	w := zip.NewWriter(out)

	// Manifest first; a failure here is fatal, the archive would be
	// unreadable without it.
	mw, err := e.createEntry(w, manifest.FileName, password)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(mw, manifestText); err != nil {
		return err
	}

	for _, folder := range entries {
		e.writeFolder(w, folder, password)
	}

	// Central directory finalize + flush are control metadata: fatal.
	if err := w.Close(); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Close()
}

// createEntry opens the next archive entry, AES-256 encrypted when a
// password is set. Entries stream through io.Copy, so sizes are unknown
// up front and the writer decides on zip64 records itself once an entry
// or the archive crosses the 4 GiB format limit.
func (e *Engine) createEntry(w *zip.Writer, name, password string) (io.Writer, error) {
	if password != "" {
		return w.Encrypt(name, password, zip.AES256Encryption)
	}
	return w.Create(name)
}

// writeFolder adds one folder's files recursively under a
// "<folderName>/" prefix. One unreadable file may not sink the whole
// archive, so per-file failures are logged and skipped.
func (e *Engine) writeFolder(w *zip.Writer, folder manifest.FolderEntry, password string) {
	prefix := filepath.Base(folder.Path)
	walkErr := filepath.WalkDir(folder.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("WARN: Skipping unreadable path %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(folder.Path, path)
		if err != nil {
			log.Printf("WARN: Skipping file %s: %v", path, err)
			return nil
		}
		entryName := prefix + "/" + filepath.ToSlash(rel)
		if err := e.copyFileEntry(w, entryName, path, password); err != nil {
			log.Printf("WARN: Skipping file %s: %v", path, err)
		}
		return nil
	})
	if walkErr != nil {
		log.Printf("WARN: Folder %s only partially archived: %v", folder.Path, walkErr)
	}
}

func (e *Engine) copyFileEntry(w *zip.Writer, entryName, path, password string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	ew, err := e.createEntry(w, entryName, password)
	if err != nil {
		return err
	}
	_, err = io.Copy(ew, in)
	return err
}
