// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pdiddy/protocol-analyzer/internal/container"
)

const imagePdftotext = "pdftotext:latest"

// PdftotextTimeout bounds a single conversion. The WHO Model List converts in
// a few seconds; anything much longer is a hung container.
var PdftotextTimeout = 2 * time.Minute

// PdftotextConverter pipes PDFs through the pdftotext container image in
// layout mode, which keeps each list entry on its own line.
type PdftotextConverter struct {
	runtime container.Runtime
}

// NewPdftotextConverter verifies the image exists locally before returning.
func NewPdftotextConverter(rt container.Runtime) (*PdftotextConverter, error) {
	if err := rt.ImageExists(imagePdftotext); err != nil {
		return nil, fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	return &PdftotextConverter{runtime: rt}, nil
}

// Convert returns the text of the PDF at pdfPath with pages separated by
// form feeds.
func (p *PdftotextConverter) Convert(pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), PdftotextTimeout)
	defer cancel()

	var out bytes.Buffer
	if err := p.runtime.Run(ctx, imagePdftotext, []string{"-layout", "-enc", "UTF-8", "-", "-"}, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with pdftotext: %w", pdfPath, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("pdftotext produced empty output for %s", pdfPath)
	}
	return out.String(), nil
}
