// Package dom holds small helpers for reading and mutating an
// golang.org/x/net/html node tree the way page scripts touch a document:
// lookups by id, class and attribute, text content, cloning and
// fragment insertion.
package dom

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses a full document.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// ParseString parses a full document from a string.
func ParseString(s string) (*html.Node, error) {
	return html.Parse(strings.NewReader(s))
}

// Render serializes n and its subtree.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// RenderChildren serializes the children of n, like innerHTML.
func RenderChildren(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// =============================================================================
// Attributes and classes
// =============================================================================

// Attr returns the value of key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// GetAttr returns the value of key on n or "".
func GetAttr(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

// SetAttr sets key to val, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key from n if present.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	return strings.Fields(GetAttr(n, "class"))
}

// HasClass reports whether n carries class cls.
func HasClass(n *html.Node, cls string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, c := range Classes(n) {
		if c == cls {
			return true
		}
	}
	return false
}

// HasAnyClass reports whether n carries one of classes.
func HasAnyClass(n *html.Node, classes ...string) bool {
	for _, cls := range classes {
		if HasClass(n, cls) {
			return true
		}
	}
	return false
}

// AddClass adds cls to n unless present.
func AddClass(n *html.Node, cls string) {
	if HasClass(n, cls) {
		return
	}
	SetAttr(n, "class", strings.TrimSpace(GetAttr(n, "class")+" "+cls))
}

// RemoveClass removes cls from n.
func RemoveClass(n *html.Node, cls string) {
	var keep []string
	for _, c := range Classes(n) {
		if c != cls {
			keep = append(keep, c)
		}
	}
	SetAttr(n, "class", strings.Join(keep, " "))
}

// ToggleClass adds cls when on is true and removes it otherwise.
func ToggleClass(n *html.Node, cls string, on bool) {
	if on {
		AddClass(n, cls)
	} else {
		RemoveClass(n, cls)
	}
}

// =============================================================================
// Lookups
// =============================================================================

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// FindFirst returns the first node under root (inclusive, document order)
// that satisfies match.
func FindFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every node under root (inclusive, document order) that
// satisfies match.
func FindAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// ByID returns the element with the given id.
func ByID(root *html.Node, id string) *html.Node {
	return FindFirst(root, func(n *html.Node) bool {
		return IsElement(n) && GetAttr(n, "id") == id
	})
}

// ByTag returns the first element named tag.
func ByTag(root *html.Node, tag atom.Atom) *html.Node {
	return FindFirst(root, func(n *html.Node) bool {
		return IsElement(n) && n.DataAtom == tag
	})
}

// FirstByClass returns the first element carrying any of classes.
func FirstByClass(root *html.Node, classes ...string) *html.Node {
	return FindFirst(root, func(n *html.Node) bool {
		return HasAnyClass(n, classes...)
	})
}

// AllByClass returns every element carrying any of classes.
func AllByClass(root *html.Node, classes ...string) []*html.Node {
	return FindAll(root, func(n *html.Node) bool {
		return HasAnyClass(n, classes...)
	})
}

// AllWithAttr returns every element whose attribute key equals val.
func AllWithAttr(root *html.Node, key, val string) []*html.Node {
	return FindAll(root, func(n *html.Node) bool {
		if !IsElement(n) {
			return false
		}
		v, ok := Attr(n, key)
		return ok && v == val
	})
}

// Closest walks from n up through its ancestors and returns the first node
// that satisfies match.
func Closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	for ; n != nil; n = n.Parent {
		if match(n) {
			return n
		}
	}
	return nil
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// =============================================================================
// Content
// =============================================================================

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(Text(c))
	}
	return sb.String()
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, text string) {
	RemoveChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// SetInnerHTML replaces the children of n with the parsed markup.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := ParseFragment(markup, n)
	if err != nil {
		return err
	}
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// ParseFragment parses markup as the content of an element shaped like
// context (a <div> when context is nil).
func ParseFragment(markup string, context *html.Node) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	if IsElement(context) && context.DataAtom != atom.Template {
		ctx = &html.Node{Type: html.ElementNode, Data: context.Data, DataAtom: context.DataAtom}
	}
	return html.ParseFragment(strings.NewReader(markup), ctx)
}

// =============================================================================
// Structure
// =============================================================================

// NewElement creates a detached element. attrs are key/value pairs.
func NewElement(tag string, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// Clone returns a detached deep copy of n.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Prepend inserts child as the first child of parent.
func Prepend(parent, child *html.Node) {
	if parent.FirstChild == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, parent.FirstChild)
}

// ElementChildren returns the element children of n.
func ElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c) {
			out = append(out, c)
		}
	}
	return out
}
