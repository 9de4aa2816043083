package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Save persists the document into dir as two artifacts: the exact JSON schema
// (ocr_result_<stem>.json) and a plain-text rendering (full_text_<stem>.txt).
// Returns both paths.
func Save(doc Document, dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create result dir: %w", err)
	}

	stem := Stem(doc.Filename)
	jsonPath := filepath.Join(dir, "ocr_result_"+stem+".json")
	txtPath := filepath.Join(dir, "full_text_"+stem+".txt")

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", jsonPath, err)
	}
	if err := os.WriteFile(txtPath, []byte(doc.AllText()), 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", txtPath, err)
	}
	return jsonPath, txtPath, nil
}

// Load reads a JSON artifact back into a Document. Pages are rebuilt through
// the constructors so the derived counts hold even if the file was edited.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	var raw Document
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("unmarshal %s: %w", path, err)
	}

	pages := make([]Page, 0, len(raw.Pages))
	for _, p := range raw.Pages {
		pages = append(pages, NewPage(p.PageNumber, p.Elements))
	}
	return NewDocument(raw.Filename, pages), nil
}

// Stem strips the directory and extension from a filename.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
