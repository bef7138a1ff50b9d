// Package testkit holds invariant checks shared by package tests.
package testkit

import (
	"fmt"
	"regexp"
	"strings"

	"fortio.org/safecast"

	"spark/internal/ast"
)

// CheckSourceInvariants runs the structural checks every generated program
// must pass:
// 1) braces balance and never close more than was opened
// 2) every line that is not a brace, a control header, a comment or a
// function signature ends with ';'
// 3) no two functions share a name
func CheckSourceInvariants(src string) error {
	depth := 0
	for i, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "{":
			depth++
			continue
		case "}":
			depth--
			if depth < 0 {
				return fmt.Errorf("line %d: unbalanced '}'", i+1)
			}
			continue
		case "":
			continue
		}
		if depth == 0 {
			// function signature
			continue
		}
		if isControlHeader(trimmed) || (strings.HasPrefix(trimmed, "/*") && strings.HasSuffix(trimmed, "*/")) {
			continue
		}
		if !strings.HasSuffix(trimmed, ";") {
			return fmt.Errorf("line %d: statement not terminated: %q", i+1, trimmed)
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced braces: depth %d at end of source", depth)
	}

	seen := map[string]bool{}
	for _, m := range signature.FindAllStringSubmatch(src, -1) {
		if seen[m[1]] {
			return fmt.Errorf("function %s defined twice", m[1])
		}
		seen[m[1]] = true
	}
	return nil
}

var signature = regexp.MustCompile(`(?m)^(?:__kernel )?\w+\*? (\w+)\(`)

func isControlHeader(line string) bool {
	return line == "else" ||
		strings.HasPrefix(line, "if (") ||
		strings.HasPrefix(line, "else if (") ||
		strings.HasPrefix(line, "while (")
}

// CheckTreeInvariants walks the tree reachable from root:
// 1) every reachable node except root is marked attached
// 2) no node is reachable twice (the structure is a tree)
// 3) symbol and function ids are non-zero
func CheckTreeInvariants(t *ast.Tree, root ast.NodeID) error {
	if t == nil {
		return fmt.Errorf("nil tree")
	}
	total, err := safecast.Conv[uint32](t.Len())
	if err != nil {
		return fmt.Errorf("tree size overflow: %w", err)
	}
	visited := make(map[ast.NodeID]bool, total)
	var walk func(id ast.NodeID, isRoot bool) error
	walk = func(id ast.NodeID, isRoot bool) error {
		n := t.Get(id)
		if n == nil {
			return fmt.Errorf("node %d: dangling handle", id)
		}
		if uint32(id) > total {
			return fmt.Errorf("node %d: beyond arena length %d", id, total)
		}
		if visited[id] {
			return fmt.Errorf("node %d: reachable twice", id)
		}
		visited[id] = true
		if !isRoot && !n.Attached {
			return fmt.Errorf("node %d: reachable but not marked attached", id)
		}
		if sym, ok := t.Symbol(id); ok && !sym.ID.IsValid() {
			return fmt.Errorf("node %d: symbol without id", id)
		}
		if fn, ok := t.Function(id); ok && !fn.ID.IsValid() {
			return fmt.Errorf("node %d: function without id", id)
		}
		for _, child := range n.Children {
			if err := walk(child, false); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root, true)
}
