// Package pdf turns generated guide text into a styled, paginated PDF.
//
// Rendering happens in two steps. Parse reads the Markdown-like text into a
// Document of sections and blocks. Render lays the Document out page by
// page with manual word wrapping, so every line's width is known before it
// is drawn and page breaks are decided here rather than by the PDF library.
package pdf

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind distinguishes body blocks.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Bullet
	Spacer
)

// Block is one body element. Indent is the bullet nesting depth (0 for
// top-level bullets and paragraphs).
type Block struct {
	Kind   BlockKind
	Text   string
	Indent int
}

// Section is a heading followed by its body. The leading section of a
// document may have an empty heading.
type Section struct {
	Heading string
	Level   int
	Blocks  []Block
}

// Document is the logical structure of a guide.
type Document struct {
	Title    string
	Sections []Section
}

var md = goldmark.New()

// Parse splits text into sections at headings. The first level-1 heading
// becomes the title; everything before the first heading lands in an
// untitled section.
func Parse(src string) Document {
	source := []byte(src)
	root := md.Parser().Parse(text.NewReader(source))

	var doc Document
	cur := &Section{}
	flush := func() {
		if cur.Heading != "" || len(cur.Blocks) > 0 {
			doc.Sections = append(doc.Sections, *cur)
		}
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			h := strings.TrimSpace(inlineText(node, source))
			if node.Level == 1 && doc.Title == "" {
				doc.Title = h
				continue
			}
			flush()
			cur = &Section{Heading: h, Level: node.Level}
		case *ast.List:
			cur.Blocks = append(cur.Blocks, listBlocks(node, source, 0)...)
		case *ast.ThematicBreak:
			cur.Blocks = append(cur.Blocks, Block{Kind: Spacer})
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				cur.Blocks = append(cur.Blocks, Block{Kind: Paragraph, Text: strings.TrimRight(string(seg.Value(source)), "\n")})
			}
		default:
			if t := strings.TrimSpace(inlineText(n, source)); t != "" {
				cur.Blocks = append(cur.Blocks, Block{Kind: Paragraph, Text: t})
			}
		}
	}
	flush()
	return doc
}

func listBlocks(list *ast.List, source []byte, depth int) []Block {
	var out []Block
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		var nested []Block
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, listBlocks(sub, source, depth+1)...)
				continue
			}
			if t := strings.TrimSpace(inlineText(c, source)); t != "" {
				parts = append(parts, t)
			}
		}
		out = append(out, Block{Kind: Bullet, Text: strings.Join(parts, " "), Indent: depth})
		out = append(out, nested...)
	}
	return out
}

// inlineText concatenates the text of n's inline descendants. Soft breaks
// become spaces and hard breaks become newlines.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(source))
				switch {
				case t.HardLineBreak():
					b.WriteByte('\n')
				case t.SoftLineBreak():
					b.WriteByte(' ')
				}
			case *ast.String:
				b.Write(t.Value)
			case *ast.AutoLink:
				b.Write(t.Label(source))
			case *ast.RawHTML:
				// dropped
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}
