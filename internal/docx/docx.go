// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docx reads the tables and body paragraphs of an Office Open XML
// word-processing document (.docx). Only text is read; styles, numbering and
// images are ignored.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

const documentPart = "word/document.xml"

// ErrNoDocumentPart is returned when the archive has no main document part.
var ErrNoDocumentPart = errors.New("docx: missing " + documentPart)

// Open reads the .docx file at path.
func Open(path string) (*types.Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()
	return readArchive(&zr.Reader)
}

// Read reads a .docx archive from r.
func Read(r io.ReaderAt, size int64) (*types.Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return readArchive(zr)
}

func readArchive(zr *zip.Reader) (*types.Document, error) {
	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", documentPart, err)
		}
		defer rc.Close()
		return parseDocument(rc)
	}
	return nil, ErrNoDocumentPart
}

// cell accumulates one w:tc of the outermost table.
type cell struct {
	paras      []string
	span       int
	vMergeCont bool
}

// parser walks document.xml tokens. Only the outermost table produces rows;
// text of nested tables is folded into the enclosing cell.
type parser struct {
	doc types.Document

	tableDepth int
	rows       []types.Row
	prevGrid   []string
	row        []*cell
	cell       *cell

	paraDepth int
	para      strings.Builder
	inText    bool
}

func parseDocument(r io.Reader) (*types.Document, error) {
	p := &parser{}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", documentPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			p.start(t)
		case xml.EndElement:
			p.end(t)
		case xml.CharData:
			if p.inText {
				p.para.Write(t)
			}
		}
	}
	return &p.doc, nil
}

func (p *parser) start(t xml.StartElement) {
	switch t.Name.Local {
	case "tbl":
		p.tableDepth++
		if p.tableDepth == 1 {
			p.rows = nil
			p.prevGrid = nil
		}
	case "tr":
		if p.tableDepth == 1 {
			p.row = nil
		}
	case "tc":
		if p.tableDepth == 1 {
			p.cell = &cell{span: 1}
		}
	case "gridSpan":
		if p.tableDepth == 1 && p.cell != nil {
			if n, err := strconv.Atoi(attr(t, "val")); err == nil && n > 1 {
				p.cell.span = n
			}
		}
	case "vMerge":
		// A bare vMerge or val="continue" continues the cell above.
		if p.tableDepth == 1 && p.cell != nil {
			if v := attr(t, "val"); v == "" || v == "continue" {
				p.cell.vMergeCont = true
			}
		}
	case "p":
		p.paraDepth++
	case "t":
		p.inText = true
	case "tab":
		if p.paraDepth > 0 {
			p.para.WriteByte('\t')
		}
	case "br", "cr":
		if p.paraDepth > 0 {
			p.para.WriteByte('\n')
		}
	}
}

func (p *parser) end(t xml.EndElement) {
	switch t.Name.Local {
	case "t":
		p.inText = false
	case "p":
		p.paraDepth--
		if p.paraDepth > 0 {
			return
		}
		text := p.para.String()
		p.para.Reset()
		if p.tableDepth > 0 && p.cell != nil {
			p.cell.paras = append(p.cell.paras, text)
		} else if p.tableDepth == 0 && strings.TrimSpace(text) != "" {
			p.doc.Paragraphs = append(p.doc.Paragraphs, text)
		}
	case "tc":
		if p.tableDepth == 1 && p.cell != nil {
			p.row = append(p.row, p.cell)
			p.cell = nil
		}
	case "tr":
		if p.tableDepth == 1 {
			p.rows = append(p.rows, p.flushRow())
		}
	case "tbl":
		if p.tableDepth == 1 {
			p.doc.Tables = append(p.doc.Tables, types.Table{Rows: p.rows})
			p.rows = nil
		}
		p.tableDepth--
	}
}

// flushRow lays the row's cells onto grid columns, repeating spanned cells
// and copying vertically merged cells from the row above.
func (p *parser) flushRow() types.Row {
	var grid []string
	for _, c := range p.row {
		text := strings.Join(c.paras, "\n")
		for i := 0; i < c.span; i++ {
			col := len(grid)
			v := text
			if c.vMergeCont && col < len(p.prevGrid) {
				v = p.prevGrid[col]
			}
			grid = append(grid, v)
		}
	}
	p.prevGrid = grid
	p.row = nil
	return types.Row{Cells: grid}
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
