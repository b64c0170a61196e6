// Package docx converts the assembled summary HTML into a WordprocessingML
// (.docx) package.
//
// Only the subset of HTML the summary templates produce is mapped: headings,
// paragraphs, bold/italic runs, line breaks, lists and tables with colspan.
// Anything else degrades to plain paragraphs of its text content.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/sin-text/backend/internal/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MIMEType is the content type of the generated files.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extension is the file extension of the generated files.
const Extension = ".docx"

// Usable page width for A4 with 1440 twip margins.
const textWidthTwips = 9026

// maxColumns bounds colspan values and the table grid, as HTML does for
// colspan.
const maxColumns = 1000

// Options mirrors the conversion flags used for tender summaries.
type Options struct {
	CantSplitRows bool // keep each table row on one page
	Footer        bool
	PageNumber    bool // centered PAGE field in the footer
}

// DefaultOptions returns rows that cannot split and a numbered footer.
func DefaultOptions() Options {
	return Options{CantSplitRows: true, Footer: true, PageNumber: true}
}

// Converter turns an HTML document into .docx bytes.
type Converter struct {
	opts Options
}

func NewConverter(opts Options) *Converter {
	return &Converter{opts: opts}
}

// Convert parses htmlDoc and returns the zipped package.
func (c *Converter) Convert(ctx context.Context, htmlDoc string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.ConversionFailure("conversion cancelled", err)
	}

	root, err := html.Parse(strings.NewReader(htmlDoc))
	if err != nil {
		return nil, models.ConversionFailure("failed to parse HTML", err)
	}

	body := findElement(root, atom.Body)
	if body == nil {
		body = root
	}

	w := &bodyWriter{opts: c.opts}
	w.blocks(body)

	document := w.document()

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	footer := footerEmptyXML
	if c.opts.PageNumber {
		footer = footerPageNumberXML
	}
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/document.xml", document},
		{"word/styles.xml", stylesXML},
		{"word/footer1.xml", footer},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return nil, models.ConversionFailure("failed to create "+p.name, err)
		}
		if _, err := f.Write([]byte(p.content)); err != nil {
			return nil, models.ConversionFailure("failed to write "+p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, models.ConversionFailure("failed to finalize package", err)
	}

	return out.Bytes(), nil
}

type run struct {
	text   string
	bold   bool
	italic bool
	br     bool
}

type bodyWriter struct {
	opts Options
	buf  bytes.Buffer
}

func (w *bodyWriter) document() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`)
	b.WriteString("<w:body>")
	b.Write(w.buf.Bytes())
	b.WriteString("<w:sectPr>")
	if w.opts.Footer {
		b.WriteString(`<w:footerReference w:type="default" r:id="` + footerReferenceID + `"/>`)
	}
	b.WriteString(`<w:pgSz w:w="11906" w:h="16838"/>`)
	b.WriteString(`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/>`)
	b.WriteString("</w:sectPr></w:body></w:document>")
	return b.String()
}

var skipped = map[atom.Atom]bool{
	atom.Head: true, atom.Style: true, atom.Script: true, atom.Title: true, atom.Meta: true, atom.Link: true,
}

var blockLevel = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.Header: true, atom.Footer: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Hr: true,
	atom.Html: true, atom.Body: true,
}

var headingStyle = map[atom.Atom]string{
	atom.H1: "Heading1", atom.H2: "Heading2", atom.H3: "Heading3",
	atom.H4: "Heading3", atom.H5: "Heading3", atom.H6: "Heading3",
}

func isBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && (blockLevel[n.DataAtom] || skipped[n.DataAtom])
}

// blocks writes the children of a container, grouping loose inline content
// into paragraphs.
func (w *bodyWriter) blocks(n *html.Node) {
	var pending []run
	flush := func() {
		if len(pending) > 0 {
			w.paragraph("", pending)
			pending = nil
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) {
			flush()
			w.block(c)
			continue
		}
		pending = collectRuns(c, run{}, pending)
	}
	flush()
}

func (w *bodyWriter) block(n *html.Node) {
	if skipped[n.DataAtom] {
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.paragraph(headingStyle[n.DataAtom], collectRuns(n, run{}, nil))
	case atom.P, atom.Pre:
		w.paragraph("", collectRuns(n, run{}, nil))
	case atom.Table:
		w.table(n)
	case atom.Ul, atom.Ol:
		w.list(n, n.DataAtom == atom.Ol)
	case atom.Li:
		w.paragraph("ListParagraph", append([]run{{text: "• "}}, collectRuns(n, run{}, nil)...))
	case atom.Hr:
		w.buf.WriteString("<w:p/>")
	default:
		w.blocks(n)
	}
}

func (w *bodyWriter) list(n *html.Node, ordered bool) {
	index := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		index++
		marker := "• "
		if ordered {
			marker = strconv.Itoa(index) + ". "
		}
		w.paragraph("ListParagraph", append([]run{{text: marker}}, collectRuns(c, run{}, nil)...))
	}
}

type cell struct {
	node   *html.Node
	span   int
	header bool
}

func tableRows(table *html.Node) [][]cell {
	var rows [][]cell
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead, atom.Tbody, atom.Tfoot:
				visit(c)
			case atom.Tr:
				var row []cell
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type != html.ElementNode || (td.DataAtom != atom.Td && td.DataAtom != atom.Th) {
						continue
					}
					span := 1
					if v, err := strconv.Atoi(attr(td, "colspan")); err == nil && v > 1 {
						span = min(v, maxColumns)
					}
					row = append(row, cell{node: td, span: span, header: td.DataAtom == atom.Th})
				}
				if len(row) > 0 {
					rows = append(rows, row)
				}
			}
		}
	}
	visit(table)
	return rows
}

func (w *bodyWriter) table(n *html.Node) {
	rows := tableRows(n)
	if len(rows) == 0 {
		return
	}

	cols := 0
	for i, row := range rows {
		rows[i] = clipRow(row)
		width := 0
		for _, c := range rows[i] {
			width += c.span
		}
		cols = max(cols, width)
	}
	colWidth := max(textWidthTwips/cols, 1)

	w.buf.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="5000" w:type="pct"/></w:tblPr>`)
	w.buf.WriteString("<w:tblGrid>")
	for i := 0; i < cols; i++ {
		fmt.Fprintf(&w.buf, `<w:gridCol w:w="%d"/>`, colWidth)
	}
	w.buf.WriteString("</w:tblGrid>")

	for _, row := range rows {
		allHeader := true
		for _, c := range row {
			allHeader = allHeader && c.header
		}

		w.buf.WriteString("<w:tr>")
		if w.opts.CantSplitRows || allHeader {
			w.buf.WriteString("<w:trPr>")
			if w.opts.CantSplitRows {
				w.buf.WriteString("<w:cantSplit/>")
			}
			if allHeader {
				w.buf.WriteString("<w:tblHeader/>")
			}
			w.buf.WriteString("</w:trPr>")
		}

		for _, c := range row {
			w.buf.WriteString("<w:tc><w:tcPr>")
			fmt.Fprintf(&w.buf, `<w:tcW w:w="%d" w:type="dxa"/>`, colWidth*c.span)
			if c.span > 1 {
				fmt.Fprintf(&w.buf, `<w:gridSpan w:val="%d"/>`, c.span)
			}
			if c.header {
				w.buf.WriteString(`<w:shd w:val="clear" w:color="auto" w:fill="F2F2F2"/>`)
			}
			w.buf.WriteString("</w:tcPr>")

			start := w.buf.Len()
			inner := &bodyWriter{opts: w.opts}
			if c.header {
				inner.paragraph("", collectRuns(c.node, run{bold: true}, nil))
			} else {
				inner.blocks(c.node)
			}
			w.buf.Write(inner.buf.Bytes())
			if w.buf.Len() == start {
				// a cell must hold at least one paragraph
				w.buf.WriteString("<w:p/>")
			}
			w.buf.WriteString("</w:tc>")
		}
		w.buf.WriteString("</w:tr>")
	}
	w.buf.WriteString("</w:tbl>")
	// Word merges adjacent tables without a separating paragraph
	w.buf.WriteString("<w:p/>")
}

// clipRow drops cells past maxColumns and shrinks the span of the cell that
// crosses the limit.
func clipRow(row []cell) []cell {
	width := 0
	for i, c := range row {
		if width+c.span > maxColumns {
			if width == maxColumns {
				return row[:i]
			}
			row[i].span = maxColumns - width
			return row[:i+1]
		}
		width += c.span
	}
	return row
}

// collectRuns flattens inline content of n into styled runs.
func collectRuns(n *html.Node, style run, acc []run) []run {
	switch n.Type {
	case html.TextNode:
		if text := collapseSpace(n.Data); text != "" {
			acc = append(acc, run{text: text, bold: style.bold, italic: style.italic})
		}
		return acc
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return acc
		}
		switch n.DataAtom {
		case atom.Br:
			return append(acc, run{br: true})
		case atom.Strong, atom.B, atom.Th:
			style.bold = true
		case atom.Em, atom.I:
			style.italic = true
		}
	case html.DocumentNode:
	default:
		return acc
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockLevel[c.DataAtom] && len(acc) > 0 {
			// nested blocks inside inline context start on a new line
			acc = append(acc, run{br: true})
		}
		acc = collectRuns(c, style, acc)
	}
	return acc
}

func (w *bodyWriter) paragraph(style string, runs []run) {
	runs = trimRuns(runs)
	if len(runs) == 0 {
		return
	}

	w.buf.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(&w.buf, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	for _, r := range runs {
		w.buf.WriteString("<w:r>")
		if r.bold || r.italic {
			w.buf.WriteString("<w:rPr>")
			if r.bold {
				w.buf.WriteString("<w:b/>")
			}
			if r.italic {
				w.buf.WriteString("<w:i/>")
			}
			w.buf.WriteString("</w:rPr>")
		}
		if r.br {
			w.buf.WriteString("<w:br/>")
		} else {
			w.buf.WriteString(`<w:t xml:space="preserve">`)
			xml.EscapeText(&w.buf, []byte(r.text))
			w.buf.WriteString("</w:t>")
		}
		w.buf.WriteString("</w:r>")
	}
	w.buf.WriteString("</w:p>")
}

// trimRuns drops edge whitespace and doubled spaces between runs; a paragraph
// with no visible text is dropped entirely.
func trimRuns(runs []run) []run {
	out := make([]run, 0, len(runs))
	prevSpace := true
	for _, r := range runs {
		if r.br {
			out = append(out, r)
			prevSpace = true
			continue
		}
		if prevSpace {
			r.text = strings.TrimLeftFunc(r.text, unicode.IsSpace)
		}
		if r.text == "" {
			continue
		}
		prevSpace = strings.HasSuffix(r.text, " ")
		out = append(out, r)
	}

	for len(out) > 0 {
		last := &out[len(out)-1]
		if last.br {
			out = out[:len(out)-1]
			continue
		}
		last.text = strings.TrimRightFunc(last.text, unicode.IsSpace)
		if last.text == "" {
			out = out[:len(out)-1]
			continue
		}
		break
	}

	visible := false
	for _, r := range out {
		if !r.br {
			visible = true
			break
		}
	}
	if !visible {
		return nil
	}
	return out
}

// collapseSpace folds whitespace runs to one space, keeping a single leading
// or trailing space when the source had one.
func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return " "
	}
	out := strings.Join(fields, " ")
	if unicode.IsSpace(rune(s[0])) {
		out = " " + out
	}
	if unicode.IsSpace(rune(s[len(s)-1])) {
		out += " "
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
