package tools

import (
	"fmt"
	"html"
	"io"

	"github.com/Comcast/xcall/core"

	md "github.com/russross/blackfriday/v2"
)

// RenderKindsHTML writes an HTML fragment documenting every Kind.
func RenderKindsHTML(out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="kinds"><table>`)
	for k := core.Kind(0); k < core.NumKinds; k++ {
		s := k.Spec()
		arity := fmt.Sprintf("%d..%d", s.MinArity, s.MaxArity)
		if s.MaxArity < 0 {
			arity = fmt.Sprintf("%d..", s.MinArity)
		}
		f(`<tr class="kind"><td><span id="%s" class="kindName">%s</span></td><td>`, s.Name, s.Name)
		f(`<div class="payload"><code>%s(%s)</code> &rarr; <code>%s</code></div>`,
			s.Name, html.EscapeString(s.Payload), html.EscapeString(s.Returns))
		f(`<div class="arity">arity %s</div>`, arity)
		if s.Doc != "" {
			f(`<div class="kindDoc doc">%s</div>`, md.Run([]byte(s.Doc)))
		}
		f(`</td></tr>`)
	}
	f(`</table></div>`)

	return nil
}

// RenderKindsPage writes a complete HTML page around RenderKindsHTML.
func RenderKindsPage(out io.Writer, cssFiles []string) error {
	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>xcall command kinds</title>
`)

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>Command kinds</h1>
`)

	if err := RenderKindsHTML(out); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, `
  </body>
</html>
`)
	return err
}
