package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"strings"

	. "github.com/Comcast/xcall/core"
)

// escape makes s safe inside a Graphviz HTML label.
func escape(s string) string {
	s = strings.Replace(s, "&", `&amp;`, -1)
	s = strings.Replace(s, "<", `&lt;`, -1)
	s = strings.Replace(s, ">", `&gt;`, -1)
	return s
}

// steps numbers the Commands in c in resolution order, starting with
// 1.
func steps(c *Command) map[*Command]int {
	acc := make(map[*Command]int)
	c.Walk(func(c *Command, depth int) error {
		acc[c] = len(acc) + 1
		return nil
	})
	return acc
}

// Dot makes a Graphviz dot file for the given Command tree.
//
// Each Command is labeled with its step in resolution order.  Edges
// are labeled with payload positions.
func Dot(c *Command, w io.Writer) error {
	if c == nil {
		return fmt.Errorf("nil command")
	}

	order := steps(c)

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	num := 0
	var process func(c *Command) string
	process = func(c *Command) string {
		num++
		id := fmt.Sprintf("c%d", num)

		fillcolor := "#99ddc8"
		style := "rounded,filled"
		switch c.Kind {
		case CreateInstance, DestructReference:
			fillcolor = "#2d93ad"
		case Cast:
			fillcolor = "#f98b8b"
			style += ",dashed"
		}
		if order[c] == len(order) {
			style += ",bold"
		}

		label := fmt.Sprintf(`%s<BR/><FONT POINT-SIZE="8">step %d</FONT>`, c.Kind, order[c])
		fmt.Fprintf(w, "  %s [style=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			id, style, fillcolor, label)

		for i, x := range c.Payload {
			var to string
			if sub, is := x.(*Command); is && sub != nil {
				to = process(sub)
			} else {
				num++
				to = fmt.Sprintf("v%d", num)
				shape := "box"
				if _, is := x.(Reference); is {
					shape = "note"
				}
				fmt.Fprintf(w, "  %s [shape=\"%s\", style=\"filled\", fillcolor=\"#e8e8e8\", label=<%s> ]\n",
					to, shape, escape(ValueString(x)))
			}
			fmt.Fprintf(w, "  %s -> %s [ label = \"%d\" ]\n", id, to, i)
		}

		return id
	}

	process(c)

	_, err := fmt.Fprintf(w, "}\n")
	return err
}
