package manifest

import (
	stdzip "archive/zip"
	"errors"
	"fmt"
	"io"

	"github.com/yeka/zip"
)

var ErrManifestMissing = errors.New("archive has no manifest entry")

// ReadRootCategory opens the zip at path and extracts the root-category
// name from its manifest. A standard reader is tried first; any failure
// there (wrong format detection, AES entries) falls through to the
// password-aware reader with the caller-supplied password.
func ReadRootCategory(path, password string) (string, error) {
	text, stdErr := readManifestStandard(path)
	if stdErr != nil {
		var encErr error
		text, encErr = readManifestEncrypted(path, password)
		if encErr != nil {
			return "", fmt.Errorf("manifest unreadable (standard: %v): %w", stdErr, encErr)
		}
	}

	name, ok := ParseRootCategory(text)
	if !ok {
		return "", ErrNoRootCategory
	}
	return name, nil
}

func readManifestStandard(path string) (string, error) {
	r, err := stdzip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != FileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return "", ErrManifestMissing
}

func readManifestEncrypted(path, password string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != FileName {
			continue
		}
		if f.IsEncrypted() {
			f.SetPassword(password)
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return "", ErrManifestMissing
}
