// Package prefixtree stores path prefixes split on "/" and answers whether
// a path falls under any of them.
package prefixtree

import "strings"

// Tree is a trie over path segments. The zero value is empty and ready to
// use. A Tree is not safe for concurrent mutation.
type Tree struct {
	root node
	size int
}

type node struct {
	children map[string]*node
	terminal bool
}

// New returns a tree holding prefixes.
func New(prefixes ...string) *Tree {
	t := &Tree{}
	for _, p := range prefixes {
		t.Add(p)
	}
	return t
}

// Add inserts prefix. Empty prefixes and duplicates are ignored.
func (t *Tree) Add(prefix string) {
	segs := split(prefix)
	if len(segs) == 0 {
		return
	}
	n := &t.root
	for _, s := range segs {
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		child, ok := n.children[s]
		if !ok {
			child = &node{}
			n.children[s] = child
		}
		n = child
	}
	if !n.terminal {
		n.terminal = true
		t.size++
	}
}

// HasPrefix reports whether some added prefix is a segment-wise prefix of
// path. "a/b" is a prefix of "a/b" and "a/b/c" but not of "a/bc".
func (t *Tree) HasPrefix(path string) bool {
	n := &t.root
	for _, s := range split(path) {
		child, ok := n.children[s]
		if !ok {
			return false
		}
		if child.terminal {
			return true
		}
		n = child
	}
	return false
}

// Len returns the number of distinct prefixes.
func (t *Tree) Len() int {
	return t.size
}

// Filter decides whether a path is included given allowed and blocked
// prefixes. A non-empty allowed list overrides the blocked list.
type Filter struct {
	allowed *Tree
	blocked *Tree
}

// NewFilter builds a filter.
func NewFilter(allowed, blocked []string) *Filter {
	return &Filter{allowed: New(allowed...), blocked: New(blocked...)}
}

// Include reports whether path passes the filter.
func (f *Filter) Include(path string) bool {
	if f.allowed.Len() > 0 {
		return f.allowed.HasPrefix(path)
	}
	return !f.blocked.HasPrefix(path)
}

func split(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s == "" || s == "." {
			continue
		}
		out = append(out, s)
	}
	return out
}
