package bptree

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index/btpage"
)

const previewLen = 3

// WriteDOT renders the tree as a Graphviz digraph. Nodes are labelled with
// their file offset and fill ratio, leaves sit on one rank and the leaf chain
// is drawn as dashed edges.
func (t *Tree[K, V]) WriteDOT(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return dberr.ErrNotInitialized
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph BPlusTree {")
	fmt.Fprintln(bw, `  graph [ranksep=0.8, nodesep=0.5, bgcolor="#ffffff", rankdir=TB];`)
	fmt.Fprintln(bw, `  node [shape=none, fontname="Helvetica", fontsize=10];`)
	fmt.Fprintln(bw, `  edge [arrowsize=0.8, color="#444444"];`)

	var leaves []*btpage.Node[K, V]
	err := t.walk(func(n *btpage.Node[K, V], _ int) error {
		fill := 100 * float64(n.Used()) / float64(t.layout.MaxKeys())
		if n.IsLeaf() {
			leaves = append(leaves, n)
			fmt.Fprintf(bw, "  n%d [label=%s];\n", n.Offset, t.leafLabel(n, fill))
			return nil
		}
		fmt.Fprintf(bw, "  n%d [label=%s];\n", n.Offset, t.internalLabel(n, fill))
		for i, c := range n.Children {
			fmt.Fprintf(bw, "  n%d:f%d -> n%d;\n", n.Offset, i, c)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(leaves) > 1 {
		fmt.Fprintln(bw, "  { rank=same;")
		for _, l := range leaves {
			fmt.Fprintf(bw, "    n%d;\n", l.Offset)
		}
		fmt.Fprintln(bw, "  }")
		for _, l := range leaves {
			if next := l.Type.Next; next != btpage.NoOffset {
				fmt.Fprintf(bw, "  n%d:next -> n%d [style=dashed, color=\"#03A9F4\", constraint=false, tailclip=false];\n", l.Offset, next)
			}
		}
	}
	fmt.Fprintln(bw, "}")
	return dberr.IO(bw.Flush(), "bptree: write dot")
}

func (t *Tree[K, V]) leafLabel(n *btpage.Node[K, V], fill float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`+
		`<TR><TD COLSPAN="2" BGCOLOR="#D5E8D4"><B>NODE %d (LEAF)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR>`+
		`<TR><TD PORT="keys" BGCOLOR="#F5F5F5" ALIGN="LEFT">`, n.Offset, fill)
	for i, k := range n.Keys {
		fmt.Fprintf(&b, `<B>%s</B> <FONT COLOR="#666666">[%s]</FONT><BR/>`, preview(k, 0), preview(n.Values[i], previewLen))
	}
	next := "NULL"
	if n.Type.Next != btpage.NoOffset {
		next = fmt.Sprint(n.Type.Next)
	}
	fmt.Fprintf(&b, `</TD><TD PORT="next" BGCOLOR="#E1F5FE" VALIGN="MIDDLE">Next: %s</TD></TR></TABLE>>`, next)
	return b.String()
}

func (t *Tree[K, V]) internalLabel(n *btpage.Node[K, V], fill float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`+
		`<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>NODE %d (INTERNAL)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR><TR>`,
		2*len(n.Keys)+1, n.Offset, fill)
	for i, k := range n.Keys {
		fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD><TD BGCOLOR="#FFFFFF"><B>%s</B></TD>`, i, n.Children[i], preview(k, 0))
	}
	last := len(n.Children) - 1
	fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD></TR></TABLE>>`, last, n.Children[last])
	return b.String()
}

// preview formats v for an HTML label, cut to limit runes when limit > 0.
func preview(v any, limit int) string {
	s := fmt.Sprint(v)
	if b, ok := v.([]byte); ok {
		s = string(b)
	}
	if r := []rune(s); limit > 0 && len(r) > limit {
		s = string(r[:limit]) + ".."
	}
	return html.EscapeString(s)
}
