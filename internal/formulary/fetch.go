// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package formulary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pdiddy/protocol-analyzer/internal/httputil"
)

// ErrNotPDF is returned when a download does not start with the PDF magic bytes.
var ErrNotPDF = errors.New("response is not a PDF")

var pdfMagic = []byte("%PDF-")

// Fetch downloads the WHO Model List PDF at url to destPath through a
// temporary file. It returns the number of bytes written.
func Fetch(ctx context.Context, client *http.Client, url, destPath string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")

	fmt.Fprintf(w, "downloading %s\n", url)
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return 0, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmpFile, err := os.CreateTemp(dir, ".fetch-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := copyPDF(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, copyErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	fmt.Fprintf(w, "saved %d bytes to %s\n", n, destPath)
	return n, nil
}

// copyPDF checks the magic bytes before copying the rest of r.
func copyPDF(dst io.Writer, r io.Reader) (int64, error) {
	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(r, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return 0, ErrNotPDF
	}
	if _, err := dst.Write(head); err != nil {
		return 0, fmt.Errorf("writing download: %w", err)
	}
	n, err := io.Copy(dst, r)
	if err != nil {
		return 0, fmt.Errorf("writing download: %w", err)
	}
	return n + int64(len(head)), nil
}
