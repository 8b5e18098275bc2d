package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteText writes an indented listing of every operation tree. The listing
// leaves out fingerprints and the trace UUID so it only changes when a
// layout does.
//
//	stream default id=0
//	  packet-header size=? ops=4
//	    compound _ph structure
//	      align _ph 8
//	      write _ph_magic magic integer:32 @0
func WriteText(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "layout v%s policy=%s byte_order=%s\n", doc.LayoutVersion, doc.Policy, doc.ByteOrder)

	for _, s := range doc.Streams {
		fmt.Fprintf(bw, "stream %s id=%d\n", s.Name, s.ID)
		for _, sc := range s.Scopes {
			writeTextScope(bw, sc, 1)
		}
		for _, r := range s.Records {
			fmt.Fprintf(bw, "  record %s id=%d", r.Name, r.ID)
			if r.LogLevel != nil {
				fmt.Fprintf(bw, " log_level=%d", *r.LogLevel)
			}
			bw.WriteByte('\n')
			for _, sc := range r.Scopes {
				writeTextScope(bw, sc, 2)
			}
		}
	}
	return bw.Flush()
}

func writeTextScope(bw *bufio.Writer, sc Scope, depth int) {
	fmt.Fprintf(bw, "%s%s size=%s ops=%d\n", indent(depth), sc.Scope, sizeString(sc.StaticSize), sc.Operations)
	writeTextNode(bw, sc.Tree, depth+1)
}

func writeTextNode(bw *bufio.Writer, n *Node, depth int) {
	bw.WriteString(indent(depth))
	bw.WriteString(NodeLine(n))
	bw.WriteByte('\n')
	for _, child := range n.Children {
		writeTextNode(bw, child, depth+1)
	}
}

// NodeLine renders one node without its children.
func NodeLine(n *Node) string {
	switch n.Op {
	case "align":
		return fmt.Sprintf("align %s %d", n.Name, n.Alignment)
	case "write":
		class := n.Class
		if n.Size > 0 {
			class += ":" + strconv.FormatUint(uint64(n.Size), 10)
		}
		return fmt.Sprintf("write %s %s %s @%s", n.Name, n.Writer, class, offsetString(n.Offset))
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s %s", n.Op, n.Name, n.Class)
		if n.LoopVar != "" {
			fmt.Fprintf(&b, " [%s]", n.LoopVar)
		}
		if n.Length > 0 {
			fmt.Fprintf(&b, " len=%d", n.Length)
		}
		if n.LengthMember != "" {
			fmt.Fprintf(&b, " len=%s", n.LengthMember)
		}
		return b.String()
	}
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func offsetString(offset *uint) string {
	if offset == nil {
		return "?"
	}
	return strconv.FormatUint(uint64(*offset), 10)
}

func sizeString(size *uint) string {
	if size == nil {
		return "?"
	}
	return strconv.FormatUint(uint64(*size), 10)
}
