package booking

import (
	"strings"

	"golang.org/x/net/html"
)

// selector is a single simple CSS selector: tag, .class, [attr], [attr=val]
// or, with word set, [attr~=val], any combination. Descendant chains are
// expressed as []selector.
type selector struct {
	tag     string
	class   string
	attrKey string
	attrVal string
	word    bool // attrVal is one of the space-separated words of the value
}

func (s selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.class != "" && !hasClass(n, s.class) {
		return false
	}
	if s.attrKey != "" {
		v, ok := attr(n, s.attrKey)
		if !ok {
			return false
		}
		switch {
		case s.attrVal == "":
		case s.word:
			if !hasWord(v, s.attrVal) {
				return false
			}
		case v != s.attrVal:
			return false
		}
	}
	return true
}

// testID selects elements by their data-testid attribute.
func testID(id string) selector { return selector{attrKey: "data-testid", attrVal: id} }

// findAll returns the descendants of root matching the selector chain, in
// document order. root itself is not a candidate.
func findAll(root *html.Node, chain ...selector) []*html.Node {
	if root == nil || len(chain) == 0 {
		return nil
	}
	matches := descendants(root, chain[0])
	for _, s := range chain[1:] {
		var next []*html.Node
		seen := make(map[*html.Node]bool)
		for _, m := range matches {
			for _, d := range descendants(m, s) {
				if !seen[d] {
					seen[d] = true
					next = append(next, d)
				}
			}
		}
		matches = next
	}
	return matches
}

// findFirst returns the first match of the chain, or nil.
func findFirst(root *html.Node, chain ...selector) *html.Node {
	if all := findAll(root, chain...); len(all) > 0 {
		return all[0]
	}
	return nil
}

func descendants(root *html.Node, s selector) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if s.matches(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")
	return hasWord(v, class)
}

func hasWord(list, word string) bool {
	for _, w := range strings.Fields(list) {
		if w == word {
			return true
		}
	}
	return false
}

// text returns the visible text of n with whitespace collapsed.
// Non-breaking spaces (used between amount and currency) become plain spaces.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	s := strings.ReplaceAll(b.String(), "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
