package output

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/maxvaer/dirsift/internal/scanner"
)

// dirNode is one path segment. status is 0 for segments that were only
// seen as a parent of a discovered directory.
type dirNode struct {
	status   int
	children map[string]*dirNode
}

func (n *dirNode) child(name string) *dirNode {
	if n.children == nil {
		n.children = make(map[string]*dirNode)
	}
	c, ok := n.children[name]
	if !ok {
		c = &dirNode{}
		n.children[name] = c
	}
	return c
}

// PrintTree renders the directories discovered below root, the directory
// the dictionary extended, with the status each answered. Directories
// found outside root by replacing the target's directory are listed
// after the tree by full path.
func PrintTree(w io.Writer, root string, dirs []*scanner.Result) {
	if len(dirs) == 0 {
		return
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}

	tree := &dirNode{}
	outside := make(map[string]int)
	for _, d := range dirs {
		status := reportedStatus(d)
		rel, under := strings.CutPrefix(d.Path, root)
		rel = strings.Trim(rel, "/")
		if !under {
			outside[strings.TrimSuffix(d.Path, "/")+"/"] = status
			continue
		}
		if rel == "" {
			continue
		}
		node := tree
		for _, seg := range strings.Split(rel, "/") {
			node = node.child(seg)
		}
		node.status = status
	}

	if len(tree.children) > 0 {
		fmt.Fprintf(w, "\n  Discovered directories:\n  %s\n", root)
		renderDirs(w, tree, "  ")
	}
	if len(outside) > 0 {
		fmt.Fprintf(w, "\n  Outside %s:\n", root)
		for _, p := range slices.Sorted(maps.Keys(outside)) {
			fmt.Fprintf(w, "  %s%s\n", p, statusTag(outside[p]))
		}
	}
}

func renderDirs(w io.Writer, n *dirNode, indent string) {
	names := slices.Sorted(maps.Keys(n.children))
	for i, name := range names {
		c := n.children[name]
		branch, next := "├── ", "│   "
		if i == len(names)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(w, "%s%s%s/%s\n", indent, branch, name, statusTag(c.status))
		renderDirs(w, c, indent+next)
	}
}

func statusTag(status int) string {
	if status == 0 {
		return ""
	}
	return fmt.Sprintf(" [%d]", status)
}
