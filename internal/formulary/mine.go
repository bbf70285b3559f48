// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package formulary

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/protocol-analyzer/internal/convert"
)

// dosageStarters open the dosage-form lines that follow each medicine name
// in the WHO Model List.
var dosageStarters = []string{
	"tablet", "injection", "oral liquid", "solid oral", "capsule",
	"powder for", "rectal", "transdermal", "solution", "concentrate",
	"inhalation", "pessary", "gel", "enema", "suppository", "lozenge",
}

var (
	bulletPrefix   = regexp.MustCompile(`^\s*[\x{F0B7}•▪]\s*`)
	dashPrefix     = regexp.MustCompile(`^\s*-\s*`)
	parenthetical  = regexp.MustCompile(`\(.*\)`)
	complementary  = regexp.MustCompile(`\s*\[c\]\s*$`)
	trailingA      = regexp.MustCompile(`\s+a\s*$`)
	trailingStar   = regexp.MustCompile(`\s*\*\s*$`)
	sectionNumber  = regexp.MustCompile(`^\d+(\.\d+)*\s`)
	validNameChars = regexp.MustCompile(`^[a-z\s\-+]+$`)
)

// MineNames extracts medicine names from the text of the WHO Model List, one
// string per PDF page. A line is a name when the next line opens a dosage
// form, or when it is a "-" entry inside a therapeutic-alternatives block.
// The result is sorted and de-duplicated.
func MineNames(pages []string) []string {
	found := make(map[string]struct{})
	inAlternatives := false

	for _, page := range pages {
		lines := strings.Split(page, "\n")
		for i, line := range lines {
			lower := strings.ToLower(strings.TrimSpace(line))
			if lower == "" || isHeaderOrFooter(line) || isDosageForm(line) {
				if strings.Contains(lower, "therapeutic alternatives") {
					inAlternatives = true
				} else if !strings.HasPrefix(lower, "-") {
					inAlternatives = false
				}
				continue
			}

			name := cleanName(lower)
			if !isValidName(name) {
				continue
			}

			if inAlternatives && strings.HasPrefix(strings.TrimSpace(line), "-") {
				found[name] = struct{}{}
				continue
			}

			if i+1 < len(lines) && isDosageForm(lines[i+1]) {
				found[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(found))
	for n := range found {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build converts the WHO Model List at inputPath to text, mines the names and
// writes them to outPath, one per line. It returns the number of names written.
func Build(conv convert.Converter, inputPath, outPath string, w io.Writer) (int, error) {
	text, err := conv.Convert(inputPath)
	if err != nil {
		return 0, fmt.Errorf("converting %s: %w", inputPath, err)
	}

	// pdftotext separates pages with form feeds.
	names := MineNames(strings.Split(text, "\f"))
	if len(names) == 0 {
		return 0, fmt.Errorf("no medicine names found in %s", inputPath)
	}

	if err := writeNames(outPath, names); err != nil {
		return 0, err
	}
	fmt.Fprintf(w, "extracted %d unique drug names to %s\n", len(names), outPath)
	return len(names), nil
}

// writeNames writes through a temporary file so a failed run never leaves a
// truncated lookup file behind.
func writeNames(outPath string, names []string) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".formulary-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := io.WriteString(tmp, strings.Join(names, "\n")+"\n")
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing formulary: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func cleanName(line string) string {
	line = bulletPrefix.ReplaceAllString(line, "")
	line = dashPrefix.ReplaceAllString(line, "")
	line = parenthetical.ReplaceAllString(line, "")
	line = complementary.ReplaceAllString(line, "")
	line = trailingA.ReplaceAllString(line, "")
	line = trailingStar.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func isDosageForm(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	for _, s := range dosageStarters {
		if strings.HasPrefix(l, s) {
			return true
		}
	}
	return false
}

func isHeaderOrFooter(line string) bool {
	l := strings.ToLower(line)
	if strings.Contains(l, "who model list") || strings.Contains(l, "page") {
		return true
	}
	if sectionNumber.MatchString(line) {
		return true
	}
	switch strings.TrimSpace(l) {
	case "complementary list", "therapeutic alternatives:":
		return true
	}
	return false
}

func isValidName(name string) bool {
	return len(name) >= 3 && validNameChars.MatchString(name)
}
