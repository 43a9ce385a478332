package wire

import (
	"fmt"
	"strings"

	xhtml "golang.org/x/net/html"
)

// RenderBanner renders the plain-text/HTML banner served at GET /, per
// spec.md §4.1. info is typically buildinfo.RuntimeInfo(); values are
// escaped with x/net/html's tolerant EscapeString rather than a hand-rolled
// replacer, reusing the same HTML utility package the teacher depends on
// for page parsing elsewhere in the tree.
func RenderBanner(info map[string]string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>osaurus</title></head><body>\n")
	b.WriteString("<pre>\n")
	b.WriteString(xhtml.EscapeString(bannerArt))
	b.WriteString("\n</pre>\n<ul>\n")
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "uptime"} {
		v, ok := info[k]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "<li>%s: %s</li>\n", xhtml.EscapeString(k), xhtml.EscapeString(v))
	}
	b.WriteString("</ul>\n</body></html>\n")
	return b.String()
}

const bannerArt = `osaurus — local chat completions gateway`
