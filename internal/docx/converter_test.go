package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sin-text/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unzipParts(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		parts[f.Name] = string(content)
	}
	return parts
}

const sampleHTML = `<!DOCTYPE html>
<html lang="it"><head><title>Sintesi</title><style>body { color: red; }</style></head>
<body>
<h1>Sintesi del Capitolato di Gara</h1>
<h2>Informazioni Generali</h2>
<p>Progetto <strong>Alfa</strong>, importo <em>100000 euro</em>.</p>
<table>
  <tr><th colspan="4">Requisiti</th></tr>
  <tr><td>A</td><td>B</td><td>C</td><td>D &amp; E</td></tr>
</table>
<ul><li>primo</li><li>secondo</li></ul>
<ol><li>uno</li></ol>
</body></html>`

func TestConvert_PackageParts(t *testing.T) {
	data, err := NewConverter(DefaultOptions()).Convert(context.Background(), sampleHTML)
	require.NoError(t, err)

	parts := unzipParts(t, data)
	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"word/_rels/document.xml.rels",
		"word/document.xml",
		"word/styles.xml",
		"word/footer1.xml",
	} {
		assert.Contains(t, parts, name)
	}
}

func TestConvert_DocumentContent(t *testing.T) {
	data, err := NewConverter(DefaultOptions()).Convert(context.Background(), sampleHTML)
	require.NoError(t, err)

	doc := unzipParts(t, data)["word/document.xml"]

	assert.Contains(t, doc, `<w:pStyle w:val="Heading1"/>`)
	assert.Contains(t, doc, `<w:pStyle w:val="Heading2"/>`)
	assert.Contains(t, doc, "Sintesi del Capitolato di Gara")
	assert.Contains(t, doc, "<w:b/>")
	assert.Contains(t, doc, "<w:i/>")
	assert.Contains(t, doc, "<w:tbl>")
	assert.Contains(t, doc, `<w:gridSpan w:val="4"/>`)
	assert.Contains(t, doc, "<w:cantSplit/>")
	assert.Contains(t, doc, "<w:tblHeader/>")
	assert.Contains(t, doc, "D &amp; E")
	assert.Contains(t, doc, "• ")
	assert.Contains(t, doc, "1. ")
	assert.Contains(t, doc, `r:id="rId2"`)

	// head content never reaches the body
	assert.NotContains(t, doc, "color: red")
	assert.Equal(t, 4, strings.Count(doc, "<w:gridCol "))
}

func TestConvert_FooterPageNumber(t *testing.T) {
	data, err := NewConverter(DefaultOptions()).Convert(context.Background(), sampleHTML)
	require.NoError(t, err)

	footer := unzipParts(t, data)["word/footer1.xml"]
	assert.Contains(t, footer, "PAGE")
}

func TestConvert_OptionsDisabled(t *testing.T) {
	data, err := NewConverter(Options{}).Convert(context.Background(), sampleHTML)
	require.NoError(t, err)

	parts := unzipParts(t, data)
	assert.NotContains(t, parts["word/document.xml"], "<w:cantSplit/>")
	assert.NotContains(t, parts["word/document.xml"], "footerReference")
	assert.NotContains(t, parts["word/footer1.xml"], "PAGE")
}

func TestConvert_WhitespaceCollapsed(t *testing.T) {
	data, err := NewConverter(Options{}).Convert(context.Background(),
		"<html><body><p>  uno\n\n   due  </p><p>   </p></body></html>")
	require.NoError(t, err)

	doc := unzipParts(t, data)["word/document.xml"]
	assert.Contains(t, doc, ">uno due<")
	assert.Equal(t, 1, strings.Count(doc, "<w:p>"))
}

func TestConvert_ColspanBounded(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		spans []string
	}{
		{
			name:  "huge colspan",
			html:  `<table><tr><td colspan="20000000">x</td></tr></table>`,
			spans: []string{`<w:gridSpan w:val="1000"/>`},
		},
		{
			name:  "row wider than the grid",
			html:  `<table><tr><td colspan="900">a</td><td colspan="900">b</td><td>c</td></tr></table>`,
			spans: []string{`<w:gridSpan w:val="900"/>`, `<w:gridSpan w:val="100"/>`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := NewConverter(Options{}).Convert(context.Background(), "<html><body>"+tt.html+"</body></html>")
			require.NoError(t, err)

			doc := unzipParts(t, data)["word/document.xml"]
			assert.Equal(t, maxColumns, strings.Count(doc, "<w:gridCol "))
			assert.NotContains(t, doc, `<w:gridCol w:w="0"/>`)
			for _, span := range tt.spans {
				assert.Contains(t, doc, span)
			}
			assert.NotContains(t, doc, ">c<")
		})
	}
}

func TestConvert_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConverter(DefaultOptions()).Convert(ctx, sampleHTML)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConversion)
}

func TestCollapseSpace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", " "},
		{"a  b", "a b"},
		{" a\nb ", " a b "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, collapseSpace(tt.in), "input %q", tt.in)
	}
}
