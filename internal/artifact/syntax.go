package artifact

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonChecker parses the script with the tree-sitter Python grammar and
// reports the first ERROR or MISSING node. The code is never executed.
type PythonChecker struct{}

// SyntaxIssue locates the first problem found.
type SyntaxIssue struct {
	Line int
	Msg  string
}

func (e *SyntaxIssue) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (PythonChecker) Check(code string) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	src := []byte(code)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return fmt.Errorf("parse python: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	bad := firstError(root)
	if bad == nil {
		return &SyntaxIssue{Line: 1, Msg: "invalid syntax"}
	}
	line := int(bad.StartPoint().Row) + 1
	if bad.IsMissing() {
		return &SyntaxIssue{Line: line, Msg: fmt.Sprintf("missing %q", bad.Type())}
	}
	return &SyntaxIssue{Line: line, Msg: "invalid syntax near " + snippet(bad.Content(src))}
}

// firstError returns the earliest ERROR or MISSING node in source order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}

func snippet(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(s); len(r) > 40 {
		s = string(r[:40]) + "..."
	}
	return fmt.Sprintf("%q", s)
}
