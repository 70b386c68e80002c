package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docsift/docsift/internal/llm"
)

func marshalRecord(record llm.ExtractedData) ([]byte, error) {
	return json.Marshal(record)
}

// SidecarPath returns where the reviewer-facing JSON artifact for a source
// document lives: next to the document, extension swapped for .json.
func SidecarPath(sourcePath string) string {
	if ext := filepath.Ext(sourcePath); ext != "" {
		return strings.TrimSuffix(sourcePath, ext) + ".json"
	}
	return sourcePath + ".json"
}

// WriteSidecar serializes the final record as pretty-printed JSON next to the
// source document.
func WriteSidecar(sourcePath string, record llm.ExtractedData) (string, error) {
	out := SidecarPath(sourcePath)
	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	if err := os.WriteFile(out, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}
	return out, nil
}
