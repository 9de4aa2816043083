// Package workspace manages run-scoped working directories under the result
// root. Every pipeline run owns exactly one directory; nothing else writes
// there.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Allocate creates a fresh timestamped directory under root and returns its
// path. A numeric suffix resolves collisions so two runs started within the
// same second never share a directory.
func Allocate(root string) (string, error) {
	stamp := time.Now().Format("20060102_150405")
	dir := filepath.Join(root, stamp)
	for i := 2; ; i++ {
		err := os.MkdirAll(filepath.Dir(dir), 0o755)
		if err != nil {
			return "", fmt.Errorf("create result root: %w", err)
		}
		err = os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create run dir: %w", err)
		}
		dir = filepath.Join(root, fmt.Sprintf("%s_%d", stamp, i))
	}
}

// SafeFilename reduces name to letters, digits and "_-.", forcing a .pdf
// suffix. Cyrillic and other letters survive; path separators and control
// characters do not. Falls back to "<fallback>.pdf" when nothing survives.
func SafeFilename(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}
	sanitized := b.String()
	if sanitized == "" || sanitized == ".pdf" {
		return fallback + ".pdf"
	}
	return sanitized
}

// TempPDF creates a temporary .pdf file outside any run directory, for inputs
// that arrive as direct uploads. The caller must remove it on every exit path.
func TempPDF() (string, error) {
	f, err := os.CreateTemp("", "upload_*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp pdf: %w", err)
	}
	return path, nil
}
