// Package drive resolves Google Drive share links and fetches the underlying
// files.
package drive

import (
	"net/url"
	"strings"
)

// ExtractFileID pulls the file identifier out of a Google Drive link.
// Recognized shapes: /file/d/<ID>/..., /uc?id=<ID>, /open?id=<ID> and
// ...?export=download&id=<ID>. Anything else, including non-URLs, is
// reported as not recognized; this function never fails.
func ExtractFileID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !strings.Contains(parsed.Host, "drive.google.") {
		return "", false
	}

	var parts []string
	for _, part := range strings.Split(parsed.Path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) >= 3 && parts[0] == "file" && parts[1] == "d" {
		return parts[2], true
	}

	if id := parsed.Query().Get("id"); id != "" {
		return id, true
	}
	return "", false
}

// DirectDownloadURL builds the direct-download form of a Drive link. Pure
// function of the identifier.
func DirectDownloadURL(fileID string) string {
	return "https://drive.google.com/uc?export=download&id=" + fileID
}
