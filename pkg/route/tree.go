package route

import (
	"strings"
)

// node is a node in the route tree. Route strings share nodes for common
// prefixes; each node can have static children, one param child and one
// catch-all child.
type node struct {
	segment string

	isParam    bool
	isCatchAll bool
	paramName  string

	children      []*node
	paramChild    *node
	catchAllChild *node

	// routes ending at this node, in registration order. The first one wins.
	routes []*Route
}

func (n *node) staticChild(segment string) *node {
	for _, c := range n.children {
		if c.segment == segment {
			return c
		}
	}
	c := &node{segment: segment}
	n.children = append(n.children, c)
	return c
}

// insert adds r under the given segments. Param and catch-all nodes are
// shared regardless of the param name; the name of the route that created
// the node wins.
func (n *node) insert(segments []string, r *Route) {
	if len(segments) == 0 {
		n.routes = append(n.routes, r)
		return
	}

	seg := segments[0]
	rest := segments[1:]

	if name, ok := catchAllName(seg); ok && len(rest) == 0 {
		if n.catchAllChild == nil {
			n.catchAllChild = &node{segment: seg, isCatchAll: true, paramName: name}
		}
		n.catchAllChild.routes = append(n.catchAllChild.routes, r)
		return
	}

	if name, ok := paramName(seg); ok {
		if n.paramChild == nil {
			n.paramChild = &node{segment: seg, isParam: true, paramName: name}
		}
		n.paramChild.insert(rest, r)
		return
	}

	n.staticChild(seg).insert(rest, r)
}

// match finds the route for the given segments. Static segments are tried
// first, then params, then catch-alls, backtracking when a branch fails.
// Param values are recorded in params; names come from the matched route.
func (n *node) match(segments []string, values []string) (*Route, []string) {
	if len(segments) == 0 {
		if len(n.routes) > 0 {
			return n.routes[0], values
		}
		// A catch-all also matches the empty remainder.
		if n.catchAllChild != nil && len(n.catchAllChild.routes) > 0 {
			return n.catchAllChild.routes[0], append(values, "")
		}
		return nil, nil
	}

	seg := segments[0]
	rest := segments[1:]

	for _, c := range n.children {
		if c.segment == seg {
			if r, v := c.match(rest, values); r != nil {
				return r, v
			}
			break
		}
	}

	if n.paramChild != nil {
		if r, v := n.paramChild.match(rest, append(values, seg)); r != nil {
			return r, v
		}
	}

	if n.catchAllChild != nil && len(n.catchAllChild.routes) > 0 {
		return n.catchAllChild.routes[0], append(values, strings.Join(segments, "/"))
	}

	return nil, nil
}

// splitPath splits a URL path into segments, dropping empty ones.
func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// paramName parses "@id" or ":id".
func paramName(seg string) (string, bool) {
	if len(seg) > 1 && (seg[0] == '@' || seg[0] == ':') {
		return seg[1:], true
	}
	return "", false
}

// catchAllName parses "*" or "*rest". A bare "*" is named "*".
func catchAllName(seg string) (string, bool) {
	if seg == "" || seg[0] != '*' {
		return "", false
	}
	if seg == "*" {
		return "*", true
	}
	return seg[1:], true
}
