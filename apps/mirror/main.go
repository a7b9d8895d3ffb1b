// Command treemirror mirrors a directory subtree of a GitHub repository.
package main

import "github.com/tilsley/treemirror/apps/mirror/internal/cli"

func main() {
	cli.Execute()
}
