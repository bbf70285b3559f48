// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns source documents into plain text for the offline
// formulary builder. PDFs go through a pdftotext container image; text files
// that were already extracted by hand are read as-is.
package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/protocol-analyzer/internal/container"
)

// Converter transforms a source file into plain text. Pages, when the backend
// knows them, are separated by form feeds.
type Converter interface {
	Convert(path string) (string, error)
}

// TextFileConverter returns the contents of a UTF-8 text file unchanged.
type TextFileConverter struct{}

// Convert reads the file at path.
func (TextFileConverter) Convert(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// ForPath picks a converter by file extension. Only ".pdf" needs a container
// runtime; detect is called lazily so text inputs work on hosts without
// docker or podman.
func ForPath(path string, detect func() (container.Runtime, error)) (Converter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		return TextFileConverter{}, nil
	case ".pdf":
		rt, err := detect()
		if err != nil {
			return nil, err
		}
		return NewPdftotextConverter(rt)
	default:
		return nil, fmt.Errorf("unsupported input %s: want .pdf or .txt", path)
	}
}
