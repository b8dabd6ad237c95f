package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"github.com/yuin/goldmark"
)

var markdown = goldmark.New()

// handleToolDocs renders a human-readable catalog of the registered
// tools. Descriptions are authored as markdown; schemas are shown as
// pretty-printed JSON.
func (s *Server) handleToolDocs(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>taskdeck tools</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
h2 { border-bottom: 1px solid #ddd; padding-bottom: 0.25rem; }
pre { background: #f6f6f6; padding: 0.75rem; overflow-x: auto; border-radius: 4px; }
code { font-size: 0.9rem; }
.output { color: #666; font-size: 0.9rem; }
</style>
</head>
<body>
<h1>Available tools</h1>
`)

	for _, desc := range s.registry.List() {
		fmt.Fprintf(&buf, "<h2><code>%s</code></h2>\n", html.EscapeString(desc.Name))
		fmt.Fprintf(&buf, "<p class=\"output\">output: %s</p>\n", desc.Output.String())

		if err := markdown.Convert([]byte(desc.Description), &buf); err != nil {
			s.logger.Warn("tool description render failed", "tool", desc.Name, "error", err)
			fmt.Fprintf(&buf, "<p>%s</p>\n", html.EscapeString(desc.Description))
		}

		schema, err := json.MarshalIndent(desc.InputSchema, "", "  ")
		if err == nil {
			fmt.Fprintf(&buf, "<pre><code>%s</code></pre>\n", html.EscapeString(string(schema)))
		}
	}

	buf.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("tool docs write failed", "error", err)
	}
}
