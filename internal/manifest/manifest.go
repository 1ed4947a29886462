// Package manifest locates, reads and merges dependency manifests.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/lambda-packager/internal/config"
)

const (
	// RequirementsFilename is the pip manifest.
	RequirementsFilename = "requirements.txt"
	// PackageJSONFilename is the npm manifest.
	PackageJSONFilename = "package.json"
)

// ErrUnknownLanguage is returned when no manifest convention exists for a language.
var ErrUnknownLanguage = errors.New("unknown language")

// Result is the outcome of reading a manifest. Found is false when the file
// does not exist, in which case Text is empty.
type Result struct {
	// Path is the file that was looked up.
	Path string
	// Text holds the UTF-8 contents when Found is true.
	Text string
	// Found reports whether the file exists.
	Found bool
}

// Filename returns the manifest filename used by language.
func Filename(language config.Language) (string, error) {
	switch language {
	case config.LanguagePython:
		return RequirementsFilename, nil
	case config.LanguageTS, config.LanguageJS:
		return PackageJSONFilename, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}
}

// Path returns the manifest path inside dir for language.
func Path(dir string, language config.Language) (string, error) {
	name, err := Filename(language)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, name), nil
}

// Read loads the manifest at path. A missing file is not an error.
func Read(path string) (Result, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Path: path}, nil
		}

		return Result{Path: path}, fmt.Errorf("read manifest %s: %w", path, err)
	}

	return Result{
		Path:  path,
		Text:  string(contents),
		Found: true,
	}, nil
}

// Merge joins the shared and module manifests with a newline between them.
// Both sides may be empty. Duplicate requirements are left to the installer.
func Merge(commonText, moduleText string) string {
	return commonText + "\n" + moduleText
}

// Write stores text as the manifest of archiveDir, replacing any existing file.
func Write(archiveDir string, language config.Language, text string) (string, error) {
	path, err := Path(archiveDir, language)
	if err != nil {
		return "", err
	}

	if err = os.WriteFile(path, []byte(text), config.DefaultFilePermissions); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", path, err)
	}

	return path, nil
}
