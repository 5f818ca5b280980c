// Package slides reads slide order, visibility and text straight from a .pptx package.
package slides

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Slide is one slide in presentation order. Number is 1-based and counts hidden slides.
type Slide struct {
	Number int
	Hidden bool
	Text   string
}

// node is a generic XML element that keeps child order.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n *node) attr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}

// relAttr returns a namespaced attribute such as r:id.
func (n *node) relAttr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local && a.Name.Space != "" {
			return a.Value
		}
	}
	return ""
}

func (n *node) child(local string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *node) path(locals ...string) *node {
	cur := n
	for _, l := range locals {
		if cur = cur.child(l); cur == nil {
			return nil
		}
	}
	return cur
}

func (n *node) children(local string) []*node {
	var out []*node
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			out = append(out, &n.Nodes[i])
		}
	}
	return out
}

// find does a depth-first search for the first element named local.
func (n *node) find(local string) *node {
	for i := range n.Nodes {
		c := &n.Nodes[i]
		if c.XMLName.Local == local {
			return c
		}
		if f := c.find(local); f != nil {
			return f
		}
	}
	return nil
}

var reSlideFile = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// ReadDeck lists every slide of the .pptx at path in presentation order.
func ReadDeck(filePath string) ([]Slide, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	order, err := slideOrder(files)
	if err != nil {
		return nil, err
	}

	deck := make([]Slide, 0, len(order))
	for i, name := range order {
		f, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("%s referenced but not found in archive", name)
		}
		root, err := parse(f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		show := root.attr("show")
		deck = append(deck, Slide{
			Number: i + 1,
			Hidden: show == "0" || show == "false",
			Text:   slideMarkdown(root),
		})
	}
	return deck, nil
}

// slideOrder follows presentation.xml's sldIdLst through its relationships,
// falling back to slide file numbering when either part is missing.
func slideOrder(files map[string]*zip.File) ([]string, error) {
	pres, relsFile := files["ppt/presentation.xml"], files["ppt/_rels/presentation.xml.rels"]
	if pres != nil && relsFile != nil {
		presRoot, err := parse(pres)
		if err != nil {
			return nil, fmt.Errorf("parse presentation.xml: %w", err)
		}
		relsRoot, err := parse(relsFile)
		if err != nil {
			return nil, fmt.Errorf("parse presentation.xml.rels: %w", err)
		}
		targets := map[string]string{}
		for _, rel := range relsRoot.children("Relationship") {
			target := rel.attr("Target")
			if strings.HasPrefix(target, "/") {
				target = strings.TrimPrefix(target, "/")
			} else {
				target = path.Join("ppt", target)
			}
			targets[rel.attr("Id")] = target
		}
		if lst := presRoot.child("sldIdLst"); lst != nil {
			var order []string
			for _, id := range lst.children("sldId") {
				if t, ok := targets[id.relAttr("id")]; ok {
					order = append(order, t)
				}
			}
			return order, nil
		}
	}

	type numbered struct {
		n    int
		name string
	}
	var found []numbered
	for name := range files {
		if m := reSlideFile.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{n, name})
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no slides found in archive")
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	order := make([]string, len(found))
	for i, f := range found {
		order[i] = f.name
	}
	return order, nil
}

func parse(f *zip.File) (*node, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	var root node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// slideMarkdown renders the title first, then the other shapes in z-order.
func slideMarkdown(root *node) string {
	tree := root.path("cSld", "spTree")
	if tree == nil {
		return ""
	}
	var title string
	var parts []string
	walkShapes(tree, &title, &parts)
	if title != "" {
		parts = append([]string{"# " + title}, parts...)
	}
	return strings.Join(parts, "\n\n")
}

func walkShapes(n *node, title *string, parts *[]string) {
	for i := range n.Nodes {
		c := &n.Nodes[i]
		switch c.XMLName.Local {
		case "sp":
			ph := c.path("nvSpPr", "nvPr", "ph")
			if ph != nil && *title == "" && isTitle(ph.attr("type")) {
				if body := c.child("txBody"); body != nil {
					*title = strings.Join(paragraphTexts(body), " ")
				}
				continue
			}
			if md := shapeMarkdown(c, ph); md != "" {
				*parts = append(*parts, md)
			}
		case "grpSp":
			walkShapes(c, title, parts)
		case "graphicFrame":
			if tbl := c.find("tbl"); tbl != nil {
				if md := tableMarkdown(tbl); md != "" {
					*parts = append(*parts, md)
				}
			}
		}
	}
}

func isTitle(phType string) bool {
	return phType == "title" || phType == "ctrTitle"
}

// shapeMarkdown renders a text shape. Paragraphs in body placeholders are
// bullets unless they opt out; elsewhere only explicit bullets are.
func shapeMarkdown(sp, ph *node) string {
	body := sp.child("txBody")
	if body == nil {
		return ""
	}
	bodyPlaceholder := ph != nil && (ph.attr("type") == "" || ph.attr("type") == "body")

	var lines []string
	for _, p := range body.children("p") {
		text := paragraphText(p)
		if text == "" {
			continue
		}
		lvl := 0
		bullet := bodyPlaceholder
		if ppr := p.child("pPr"); ppr != nil {
			lvl, _ = strconv.Atoi(ppr.attr("lvl"))
			switch {
			case ppr.child("buNone") != nil:
				bullet = false
			case ppr.child("buChar") != nil, ppr.child("buAutoNum") != nil:
				bullet = true
			}
		}
		if bullet {
			lines = append(lines, strings.Repeat("  ", lvl)+"- "+text)
		} else {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

func paragraphTexts(body *node) []string {
	var out []string
	for _, p := range body.children("p") {
		if t := paragraphText(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func paragraphText(p *node) string {
	var sb strings.Builder
	for i := range p.Nodes {
		c := &p.Nodes[i]
		switch c.XMLName.Local {
		case "r", "fld":
			if t := c.child("t"); t != nil {
				sb.WriteString(t.Text)
			}
		case "br":
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func tableMarkdown(tbl *node) string {
	var rows [][]string
	cols := 0
	for _, tr := range tbl.children("tr") {
		var row []string
		for _, tc := range tr.children("tc") {
			cell := ""
			if body := tc.child("txBody"); body != nil {
				cell = strings.Join(paragraphTexts(body), " ")
			}
			row = append(row, strings.ReplaceAll(cell, "|", `\|`))
		}
		cols = max(cols, len(row))
		rows = append(rows, row)
	}
	if len(rows) == 0 || cols == 0 {
		return ""
	}

	line := func(cells []string) string {
		padded := make([]string, cols)
		copy(padded, cells)
		return "| " + strings.Join(padded, " | ") + " |"
	}
	sep := make([]string, cols)
	for i := range sep {
		sep[i] = "---"
	}
	out := []string{line(rows[0]), line(sep)}
	for _, r := range rows[1:] {
		out = append(out, line(r))
	}
	return strings.Join(out, "\n")
}

// Visible filters out hidden slides, keeping their original numbers.
func Visible(deck []Slide) []Slide {
	out := make([]Slide, 0, len(deck))
	for _, s := range deck {
		if !s.Hidden {
			out = append(out, s)
		}
	}
	return out
}
