package main

import (
	"fmt"

	"github.com/tilsley/treemirror/apps/mock-github/contents"
)

const (
	seedOwner = "pyrevitlabs"
	seedRepo  = "pyRevit"

	textPlain = "text/plain; charset=utf-8"
)

// pngHeader is enough of a PNG for clients that classify by media type.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var panels = map[string][]string{
	"Project.panel":   {"Sheets", "Views", "Links"},
	"Selection.panel": {"Select Similar", "Invert"},
	"pyRevit.panel":   {"Settings", "Reload"},
}

// seedRepos lays out an extensions tree shaped like pyRevit's: containers
// ending in .extension, one of which holds the pyRevit.tab target.
func seedRepos(s *contents.Server) {
	put := func(path string, body []byte, contentType string) {
		s.Put(seedOwner, seedRepo, path, body, contentType)
	}

	put("extensions/readme.md", []byte("# Extensions\n"), textPlain)
	put("extensions/extensions.json", []byte(`{"extensions": []}`), "application/json; charset=utf-8")

	const tab = "extensions/pyRevitCore.extension/pyRevit.tab"
	put("extensions/pyRevitCore.extension/extension.json", []byte(`{"name": "pyRevitCore"}`), "application/json; charset=utf-8")
	put(tab+"/bundle.yaml", []byte("layout:\n  - Project\n  - Selection\n  - pyRevit\n"), textPlain)
	for panel, buttons := range panels {
		put(fmt.Sprintf("%s/%s/bundle.yaml", tab, panel), []byte("title: "+panel+"\n"), textPlain)
		for _, b := range buttons {
			dir := fmt.Sprintf("%s/%s/%s.pushbutton", tab, panel, b)
			put(dir+"/script.py", []byte(script(b)), textPlain)
			put(dir+"/icon.png", pngHeader, "image/png")
		}
	}
	put(tab+"/Project.panel/Sheets.pushbutton/lib.dll", []byte{0x4d, 0x5a, 0x90, 0x00}, "application/octet-stream")

	put("extensions/pyRevitTools.extension/Tools.tab/Misc.panel/Hello.pushbutton/script.py", []byte(script("Hello")), textPlain)
	put("extensions/pyRevitDevTools.extension/Dev.tab/bundle.yaml", []byte("title: Dev\n"), textPlain)
}

func script(name string) string {
	return fmt.Sprintf(`"""%s"""
from pyrevit import script

output = script.get_output()
output.print_md("## %s")
`, name, name)
}
