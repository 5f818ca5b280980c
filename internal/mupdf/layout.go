package mupdf

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Block is one positioned line of text as laid out by MuPDF, in points.
type Block struct {
	Top        float64
	Left       float64
	LineHeight float64
	FontSize   float64
	Text       string
}

// Page holds the page box from the stext HTML wrapper.
type Page struct {
	Width  float64
	Height float64
}

type blockKind int

const (
	kindBody blockKind = iota
	kindHeading
	kindList
)

// element is a classified block, possibly merged from several blocks.
type element struct {
	kind   blockKind
	level  int
	top    float64
	bottom float64
	left   float64
	band   float64
	lines  []string
}

const (
	h1Size = 20.0
	h2Size = 16.0
	h3Size = 14.0

	topRegion      = 0.10
	footerRegion   = 0.90
	maxHeadingRune = 80
	sameLineSlack  = 1.0
)

var (
	reTop        = regexp.MustCompile(`(?:^|;)\s*top:\s*(-?[\d.]+)pt`)
	reLeft       = regexp.MustCompile(`(?:^|;)\s*left:\s*(-?[\d.]+)pt`)
	reLineHeight = regexp.MustCompile(`(?:^|;)\s*line-height:\s*([\d.]+)pt`)
	reFontSize   = regexp.MustCompile(`(?:^|;)\s*font-size:\s*([\d.]+)pt`)
	reWidth      = regexp.MustCompile(`(?:^|;)\s*width:\s*([\d.]+)pt`)
	reHeight     = regexp.MustCompile(`(?:^|;)\s*height:\s*([\d.]+)pt`)
)

// bullets are the glyphs that open a list item.
var bullets = map[rune]bool{
	'•': true, '●': true, '▪': true, '■': true, '◦': true, '○': true, '‣': true,
	'►': true, '▶': true, '➢': true, '✓': true, '⁃': true, '·': true, '–': true,
	'-': true, '*': true, '\uf0b7': true, '\uf0a7': true,
}

// ParseHTML reads MuPDF's positioned stext HTML.
func ParseHTML(src string) (Page, []Block, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return Page{}, nil, fmt.Errorf("parse stext html: %w", err)
	}

	var page Page
	var blocks []Block
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			style := attr(n, "style")
			switch {
			case n.DataAtom == atom.Img:
				return
			case reTop.MatchString(style):
				b := Block{
					Top:        number(reTop, style),
					Left:       number(reLeft, style),
					LineHeight: number(reLineHeight, style),
				}
				var sb strings.Builder
				collect(n, &sb, &b.FontSize)
				b.Text = strings.Join(strings.Fields(sb.String()), " ")
				if b.LineHeight == 0 {
					b.LineHeight = b.FontSize
				}
				if b.Text != "" {
					blocks = append(blocks, b)
				}
				return
			case page.Height == 0 && reHeight.MatchString(style):
				page.Width = number(reWidth, style)
				page.Height = number(reHeight, style)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return page, blocks, nil
}

// collect gathers text beneath n and tracks the largest font size seen.
func collect(n *html.Node, sb *strings.Builder, size *float64) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode {
		if n.DataAtom == atom.Img {
			return
		}
		if fs := number(reFontSize, attr(n, "style")); fs > *size {
			*size = fs
		}
		if n.DataAtom == atom.Br {
			sb.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, sb, size)
	}
}

// LayoutMarkdown turns one page of stext HTML into markdown: headings by size
// or position, bullet runs as lists, everything in top-to-bottom order.
func LayoutMarkdown(src string, pageNumber int) (string, error) {
	page, blocks, err := ParseHTML(src)
	if err != nil {
		return "", err
	}
	return Markdown(page, blocks, pageNumber), nil
}

// Markdown renders parsed blocks.
func Markdown(page Page, blocks []Block, pageNumber int) string {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if abs(sorted[i].Top-sorted[j].Top) > sameLineSlack {
			return sorted[i].Top < sorted[j].Top
		}
		return sorted[i].Left < sorted[j].Left
	})
	sorted = joinSameLine(sorted)

	var elems []element
	for _, b := range sorted {
		if dropBlock(page, b, pageNumber) {
			continue
		}
		e := classify(page, b)
		if n := len(elems); n > 0 && merges(&elems[n-1], e) {
			prev := &elems[n-1]
			if e.kind == kindList {
				prev.lines = append(prev.lines, e.lines...)
			} else {
				prev.lines[len(prev.lines)-1] += " " + e.lines[0]
			}
			prev.bottom = e.top
			continue
		}
		elems = append(elems, e)
	}

	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		switch e.kind {
		case kindHeading:
			parts = append(parts, strings.Repeat("#", e.level)+" "+e.lines[0])
		case kindList:
			items := make([]string, len(e.lines))
			for i, l := range e.lines {
				items[i] = "- " + l
			}
			parts = append(parts, strings.Join(items, "\n"))
		default:
			parts = append(parts, e.lines[0])
		}
	}
	return strings.Join(parts, "\n\n")
}

// joinSameLine glues blocks sharing a baseline, such as a detached bullet and its text.
func joinSameLine(blocks []Block) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if n := len(out); n > 0 && abs(out[n-1].Top-b.Top) <= sameLineSlack {
			prev := &out[n-1]
			prev.Text += " " + b.Text
			prev.FontSize = max(prev.FontSize, b.FontSize)
			prev.LineHeight = max(prev.LineHeight, b.LineHeight)
			continue
		}
		out = append(out, b)
	}
	return out
}

func classify(page Page, b Block) element {
	e := element{kind: kindBody, top: b.Top, bottom: b.Top, left: b.Left, band: 2 * max(b.LineHeight, b.FontSize, 1)}
	if item, ok := listItem(b.Text); ok {
		e.kind = kindList
		e.lines = []string{item}
		return e
	}
	e.lines = []string{b.Text}
	switch {
	case b.FontSize > h1Size:
		e.kind, e.level = kindHeading, 1
	case b.FontSize > h2Size:
		e.kind, e.level = kindHeading, 2
	case b.FontSize > h3Size:
		e.kind, e.level = kindHeading, 3
	case page.Height > 0 && b.Top < page.Height*topRegion && utf8.RuneCountInString(b.Text) <= maxHeadingRune:
		e.kind, e.level = kindHeading, 3
	}
	return e
}

// merges reports whether next continues prev: another bullet in the same
// vertical band, or an indented wrap line of the last bullet.
func merges(prev *element, next element) bool {
	if prev.kind != kindList || next.top-prev.bottom > prev.band {
		return false
	}
	switch next.kind {
	case kindList:
		return true
	case kindBody:
		return next.left > prev.left
	}
	return false
}

func listItem(text string) (string, bool) {
	r, size := utf8.DecodeRuneInString(text)
	if !bullets[r] {
		return "", false
	}
	rest := text[size:]
	// ASCII markers need a following space so "-5%" or "*args" stay body text.
	if r < utf8.RuneSelf && !strings.HasPrefix(rest, " ") {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

// dropBlock filters glyph-only noise and a bare page number in the footer.
func dropBlock(page Page, b Block, pageNumber int) bool {
	if isNoise(b.Text) {
		return true
	}
	inFooter := page.Height == 0 || b.Top > page.Height*footerRegion
	return inFooter && b.Text == strconv.Itoa(pageNumber)
}

func isNoise(line string) bool {
	for _, r := range line {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func number(re *regexp.Regexp, style string) float64 {
	m := re.FindStringSubmatch(style)
	if m == nil {
		return 0
	}
	f, _ := strconv.ParseFloat(m[1], 64)
	return f
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
