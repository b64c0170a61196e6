package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	artifactPrefix = "sintesi_"
	metaSuffix     = ".meta"
	tempPattern    = ".tmp-*"
)

// ErrInvalidName is returned for names that are not a single path element
// inside the store directory.
var ErrInvalidName = errors.New("invalid file name")

// ArtifactName builds a collision-resistant output name:
// sintesi_<unix millis>_<8 hex chars><ext>.
func ArtifactName(now time.Time, ext string) string {
	return fmt.Sprintf("%s%d_%s%s", artifactPrefix, now.UnixMilli(), shortID(), ext)
}

// UploadName prefixes the sanitized client name with a timestamp and a random
// fragment so concurrent uploads of the same file never collide.
func UploadName(now time.Time, original string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), shortID(), sanitize(original))
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// sanitize keeps the base name and replaces anything outside a conservative
// character set.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload.pdf"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}

// validName rejects anything that could escape the directory or address a
// sidecar or temp file.
func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, metaSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
