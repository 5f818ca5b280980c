package mupdf

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(top, left, size float64, text string) string {
	return `<p style="top:` + ftoa(top) + `pt;left:` + ftoa(left) + `pt;line-height:` + ftoa(size+2) + `pt">` +
		`<span style="font-family:Helvetica,sans-serif;font-size:` + ftoa(size) + `pt">` + text + `</span></p>`
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

func page(lines ...string) string {
	return `<!DOCTYPE html><html><body><div id="page0" style="width:612.0pt;height:792.0pt">` +
		strings.Join(lines, "\n") + `</div></body></html>`
}

func TestLayoutMarkdown(t *testing.T) {
	src := page(
		line(300, 72, 15, "Details"),
		line(100, 72, 24, "Overview"),
		line(40, 72, 10, "Quarterly Report"),
		line(140, 72, 18, "Highlights"),
		line(170, 72, 11, "Revenue grew across all regions."),
		line(200, 72, 11, "• First point"),
		line(214, 72, 11, "• Second point"),
		line(228, 84, 11, "continues here"),
		line(760, 300, 10, "3"),
	)

	got, err := LayoutMarkdown(src, 3)
	require.NoError(t, err)

	want := strings.Join([]string{
		"### Quarterly Report",
		"# Overview",
		"## Highlights",
		"Revenue grew across all regions.",
		"- First point\n- Second point continues here",
		"### Details",
	}, "\n\n")
	assert.Equal(t, want, got)
}

func TestLayoutMarkdownListBands(t *testing.T) {
	src := page(
		line(200, 72, 11, "• Alpha"),
		line(214, 72, 11, "• Beta"),
		line(400, 72, 11, "• Gamma"),
	)
	got, err := LayoutMarkdown(src, 1)
	require.NoError(t, err)
	assert.Equal(t, "- Alpha\n- Beta\n\n- Gamma", got, "items far apart start a new list")
}

func TestLayoutMarkdownDetachedBullet(t *testing.T) {
	src := page(
		line(300, 72, 11, "•"),
		line(300, 84, 11, "Detached item"),
		line(330, 72, 11, "-5% margin compression"),
	)
	got, err := LayoutMarkdown(src, 1)
	require.NoError(t, err)
	assert.Equal(t, "- Detached item\n\n-5% margin compression", got)
}

func TestParseHTML(t *testing.T) {
	src := page(
		`<img style="position:absolute;top:10pt;left:10pt;width:100pt;height:50pt" src="data:image/png;base64,AAAA">`,
		`<p style="top:50.5pt;left:72pt;line-height:14pt"><span style="font-size:9pt">small</span> <b><span style="font-size:12pt">bold</span></b></p>`,
		`<p style="top:80pt;left:72pt;line-height:14pt"><span style="font-size:9pt">   </span></p>`,
	)
	pg, blocks, err := ParseHTML(src)
	require.NoError(t, err)

	assert.Equal(t, Page{Width: 612, Height: 792}, pg)
	require.Len(t, blocks, 1)
	assert.Equal(t, "small bold", blocks[0].Text)
	assert.Equal(t, 50.5, blocks[0].Top)
	assert.Equal(t, 12.0, blocks[0].FontSize)
}

func TestLayoutMarkdownEmptyPage(t *testing.T) {
	got, err := LayoutMarkdown(page(), 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCleanText(t *testing.T) {
	raw := "Introduction\nthis sentence wraps\nonto the next line.\n***\n\n7\nFinal words."
	assert.Equal(t, "Introduction this sentence wraps\n\nonto the next line.\n\nFinal words.", cleanText(raw, 7))
}
