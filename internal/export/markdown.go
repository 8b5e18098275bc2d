package export

import (
	"bufio"
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// WriteMarkdown writes one table per root scope, listing the operations in
// emission order. Nesting shows as indentation of the Name column.
func WriteMarkdown(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Trace layout\n\n")
	fmt.Fprintf(bw, "- Layout version: %s\n- Policy: `%s`\n- Byte order: %s\n", doc.LayoutVersion, doc.Policy, doc.ByteOrder)
	if doc.UUID != "" {
		fmt.Fprintf(bw, "- UUID: `%s`\n", doc.UUID)
	}

	for _, s := range doc.Streams {
		fmt.Fprintf(bw, "\n## Data stream type `%s` (id %d)\n", s.Name, s.ID)
		for _, sc := range s.Scopes {
			writeMarkdownScope(bw, "###", sc)
		}
		for _, r := range s.Records {
			fmt.Fprintf(bw, "\n### Event record type `%s` (id %d)\n", r.Name, r.ID)
			for _, sc := range r.Scopes {
				writeMarkdownScope(bw, "####", sc)
			}
		}
	}
	return bw.Flush()
}

func writeMarkdownScope(bw *bufio.Writer, heading string, sc Scope) {
	fmt.Fprintf(bw, "\n%s %s\n\n", heading, sc.Scope)
	fmt.Fprintf(bw, "Static size: %s bits, %d operations.\n\n", sizeString(sc.StaticSize), sc.Operations)
	bw.WriteString("| Operation | Name | Writer | Class | Size | Alignment | Offset |\n")
	bw.WriteString("|---|---|---|---|---|---|---|\n")
	writeMarkdownRows(bw, sc.Tree, 0)
}

func writeMarkdownRows(bw *bufio.Writer, n *Node, depth int) {
	var size, alignment, offset string
	if n.Size > 0 {
		size = fmt.Sprint(n.Size)
	}
	if n.Alignment > 0 {
		alignment = fmt.Sprint(n.Alignment)
	}
	if n.Op == "write" {
		offset = offsetString(n.Offset)
	}
	fmt.Fprintf(bw, "| %s | %s`%s` | %s | %s | %s | %s | %s |\n",
		n.Op, markdownIndent(depth), n.Name, n.Writer, n.Class, size, alignment, offset)
	for _, child := range n.Children {
		writeMarkdownRows(bw, child, depth+1)
	}
}

func markdownIndent(depth int) string {
	var b bytes.Buffer
	for range depth {
		b.WriteString("&nbsp;&nbsp;")
	}
	return b.String()
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// WriteHTML writes a standalone HTML page rendered from the Markdown
// listing.
func WriteHTML(w io.Writer, doc *Document) error {
	var src bytes.Buffer
	if err := WriteMarkdown(&src, doc); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := markdown.Convert(src.Bytes(), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
		html.EscapeString("Trace layout "+doc.ProgramFingerprint))
	bw.Write(body.Bytes())
	bw.WriteString("</body>\n</html>\n")
	return bw.Flush()
}
