package doc

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/treeup/internal/node"
)

// Select evaluates a simple absolute path and returns matching pre values
// in document order.
//
// Supported steps, separated by "/" ("//" selects descendants):
//
//	name  *  name[n]  *[n]  @name  @*  text()  comment()  node()
//
// Positions in [n] are 1-based and count within each context node.
func (d *Data) Select(path string) ([]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return table(d.rows).selectPath(path)
}

type step struct {
	axis  string // "child", "descendant" or "attribute"
	test  string // name, "*", "text()", "comment()", "node()"
	index int    // 1-based, 0 = all
}

func (t table) selectPath(path string) ([]int, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	ctx := []int{-1}
	for _, s := range steps {
		var next []int
		seen := make(map[int]bool)
		for _, c := range ctx {
			for _, m := range t.apply(c, s) {
				if !seen[m] {
					seen[m] = true
					next = append(next, m)
				}
			}
		}
		slices.Sort(next)
		ctx = next
	}
	return ctx, nil
}

func (t table) apply(ctx int, s step) []int {
	var cands []int
	switch s.axis {
	case "attribute":
		if ctx < 0 || t[ctx].Kind != node.Element {
			return nil
		}
		cands = t.attributes(ctx)
	case "descendant":
		for q := t.contentStart(ctx); q < t.end(ctx); q++ {
			if t[q].Kind != node.Attribute {
				cands = append(cands, q)
			}
		}
	default:
		cands = t.children(ctx)
	}
	var out []int
	for _, c := range cands {
		if t.matches(c, s) {
			out = append(out, c)
		}
	}
	if s.index > 0 {
		if s.index > len(out) {
			return nil
		}
		return out[s.index-1 : s.index]
	}
	return out
}

func (t table) matches(pre int, s step) bool {
	r := t[pre]
	switch s.test {
	case "node()":
		return true
	case "text()":
		return r.Kind == node.Text
	case "comment()":
		return r.Kind == node.Comment
	case "*":
		return r.Kind == node.Element || (s.axis == "attribute" && r.Kind == node.Attribute)
	default:
		if s.axis == "attribute" {
			return r.Kind == node.Attribute && r.Name == s.test
		}
		return r.Kind == node.Element && r.Name == s.test
	}
}

func parsePath(path string) ([]step, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("select %q: path must be absolute", path)
	}
	var steps []step
	rest := path
	for rest != "" {
		axis := "child"
		switch {
		case strings.HasPrefix(rest, "//"):
			axis = "descendant"
			rest = rest[2:]
		case strings.HasPrefix(rest, "/"):
			rest = rest[1:]
		default:
			return nil, fmt.Errorf("select %q: expected '/'", path)
		}
		seg := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seg, rest = rest[:i], rest[i:]
		} else {
			rest = ""
		}
		if seg == "" {
			return nil, fmt.Errorf("select %q: empty step", path)
		}
		s, err := parseStep(seg, axis)
		if err != nil {
			return nil, fmt.Errorf("select %q: %w", path, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func parseStep(seg, axis string) (step, error) {
	s := step{axis: axis}
	if strings.HasPrefix(seg, "@") {
		if axis == "descendant" {
			return s, fmt.Errorf("attribute step %q after //", seg)
		}
		s.axis = "attribute"
		seg = seg[1:]
	}
	if i := strings.IndexByte(seg, '['); i >= 0 {
		if !strings.HasSuffix(seg, "]") {
			return s, fmt.Errorf("unterminated predicate in %q", seg)
		}
		n, err := strconv.Atoi(seg[i+1 : len(seg)-1])
		if err != nil || n < 1 {
			return s, fmt.Errorf("invalid position in %q", seg)
		}
		s.index = n
		seg = seg[:i]
	}
	if seg == "" {
		return s, fmt.Errorf("empty name test")
	}
	s.test = seg
	return s, nil
}
