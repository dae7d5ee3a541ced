package node

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseString parses an XML fragment. See Parse.
func (a *Arena) ParseString(s string) ([]*Node, error) {
	return a.Parse(strings.NewReader(s))
}

// Parse reads a sequence of top-level nodes from r.
//
// The input may hold several top-level elements, text, comments and
// processing instructions; an XML declaration and doctype are skipped.
// Namespace prefixes are kept verbatim in names. Text consisting only of
// whitespace is dropped.
func (a *Arena) Parse(r io.Reader) ([]*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		top   []*Node
		stack []*Node
	)
	add := func(n *Node) {
		if len(stack) == 0 {
			top = append(top, n)
			return
		}
		p := stack[len(stack)-1]
		p.InsertChildren(len(p.Children), n)
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := a.Element(qname(t.Name), nil)
			for _, attr := range t.Attr {
				name := qname(attr.Name)
				if _, dup := el.Attr(name); dup {
					return nil, fmt.Errorf("parse xml: duplicate attribute %q on <%s>", name, el.Name)
				}
				el.InsertAttrs(len(el.Attrs), a.Attribute(name, attr.Value))
			}
			add(el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("parse xml: unexpected </%s>", qname(t.Name))
			}
			open := stack[len(stack)-1]
			if open.Name != qname(t.Name) {
				return nil, fmt.Errorf("parse xml: </%s> closes <%s>", qname(t.Name), open.Name)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			s := string(t)
			if strings.TrimSpace(s) == "" {
				continue
			}
			add(a.Text(s))
		case xml.Comment:
			add(a.Comment(string(t)))
		case xml.ProcInst:
			if t.Target == "xml" {
				continue
			}
			add(a.PI(t.Target, string(t.Inst)))
		case xml.Directive:
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("parse xml: unclosed <%s>", stack[len(stack)-1].Name)
	}
	return top, nil
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// String serializes n as XML.
func (n *Node) String() string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

// Serialize writes nodes as XML, one after the other.
func Serialize(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writeNode(&b, n)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	switch n.Kind {
	case Document:
		for _, c := range n.Children {
			writeNode(b, c)
		}
	case Element:
		b.WriteByte('<')
		b.WriteString(n.Name)
		for _, a := range n.Attrs {
			WriteAttr(b, a.Name, a.Value)
		}
		if len(n.Children) == 0 {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')
		for _, c := range n.Children {
			writeNode(b, c)
		}
		b.WriteString("</")
		b.WriteString(n.Name)
		b.WriteByte('>')
	case Attribute:
		b.WriteString(n.Name)
		b.WriteString(`="`)
		b.WriteString(EscapeAttr(n.Value))
		b.WriteByte('"')
	case Text:
		b.WriteString(EscapeText(n.Value))
	case Comment:
		WriteComment(b, n.Value)
	case ProcessingInstruction:
		WritePI(b, n.Name, n.Value)
	}
}

// WriteAttr writes ` name="value"`.
func WriteAttr(b *strings.Builder, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(EscapeAttr(value))
	b.WriteByte('"')
}

// WriteComment writes <!--value-->.
func WriteComment(b *strings.Builder, value string) {
	b.WriteString("<!--")
	b.WriteString(value)
	b.WriteString("-->")
}

// WritePI writes <?target value?>.
func WritePI(b *strings.Builder, target, value string) {
	b.WriteString("<?")
	b.WriteString(target)
	if value != "" {
		b.WriteByte(' ')
		b.WriteString(value)
	}
	b.WriteString("?>")
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;")
)

// EscapeText escapes character data.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// EscapeAttr escapes an attribute value for double quotes.
func EscapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
