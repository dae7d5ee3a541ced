package doc

import (
	"strings"

	"github.com/roach88/treeup/internal/node"
)

// table holds the navigation helpers shared by Data reads and Tx edits.
type table []Row

func (t table) row(pre int) (Row, bool) {
	if pre < 0 || pre >= len(t) {
		return Row{}, false
	}
	return t[pre], true
}

func (t table) parent(pre int) int {
	return pre - t[pre].Dist
}

// end returns the first pre after the subtree of pre; -1 means the whole table.
func (t table) end(pre int) int {
	if pre < 0 {
		return len(t)
	}
	return pre + t[pre].Size
}

// contentStart returns the pre of the first child slot of pre.
func (t table) contentStart(pre int) int {
	if pre < 0 {
		return 0
	}
	return pre + t[pre].ASize
}

func (t table) attributes(pre int) []int {
	if _, ok := t.row(pre); !ok {
		return nil
	}
	out := make([]int, 0, t[pre].ASize-1)
	for a := pre + 1; a < pre+t[pre].ASize; a++ {
		out = append(out, a)
	}
	return out
}

func (t table) children(pre int) []int {
	if pre >= len(t) {
		return nil
	}
	var out []int
	for c := t.contentStart(pre); c < t.end(pre); c += t[c].Size {
		out = append(out, c)
	}
	return out
}

func (t table) write(b *strings.Builder, pre int) {
	r := t[pre]
	switch r.Kind {
	case node.Element:
		b.WriteByte('<')
		b.WriteString(r.Name)
		for _, a := range t.attributes(pre) {
			node.WriteAttr(b, t[a].Name, t[a].Value)
		}
		kids := t.children(pre)
		if len(kids) == 0 {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')
		for _, c := range kids {
			t.write(b, c)
		}
		b.WriteString("</")
		b.WriteString(r.Name)
		b.WriteByte('>')
	case node.Attribute:
		b.WriteString(r.Name)
		b.WriteString(`="`)
		b.WriteString(node.EscapeAttr(r.Value))
		b.WriteByte('"')
	case node.Text:
		b.WriteString(node.EscapeText(r.Value))
	case node.Comment:
		node.WriteComment(b, r.Value)
	case node.ProcessingInstruction:
		node.WritePI(b, r.Name, r.Value)
	}
}
