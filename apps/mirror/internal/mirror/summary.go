package mirror

import "github.com/tilsley/treemirror/pkg/api"

// Summarize counts the directory and file nodes below root. The root itself
// is not counted. Directories carrying an error are counted like any other,
// along with whatever children they hold.
func Summarize(root *api.Node) api.Counts {
	var c api.Counts
	if root == nil {
		return c
	}
	for _, n := range root.Items {
		if n.IsDir() {
			sub := Summarize(n)
			c.Directories += 1 + sub.Directories
			c.Files += sub.Files
			continue
		}
		c.Files++
	}
	return c
}
