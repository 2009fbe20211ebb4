/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

import (
	"fmt"
	"io"
	"strings"

	. "github.com/Comcast/xcall/core"
)

type MermaidOpts struct {
	// ShowValues includes terminal payload values as nodes.
	ShowValues bool `json:"showValues"`

	// ShowSteps prefixes each Command with its step in resolution
	// order.
	ShowSteps bool `json:"showSteps"`

	// CommandFill is the fill color for Command nodes.
	CommandFill string `json:"commandFill,omitempty"`
}

// DefaultMermaidOpts is used when Mermaid gets nil opts.
var DefaultMermaidOpts = MermaidOpts{
	ShowValues:  true,
	ShowSteps:   true,
	CommandFill: "#bcf2db",
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given Command tree.
func Mermaid(c *Command, w io.Writer, opts *MermaidOpts) error {
	if c == nil {
		return fmt.Errorf("nil command")
	}
	if opts == nil {
		opts = &DefaultMermaidOpts
	}

	order := steps(c)

	fmt.Fprintf(w, "graph TB\n")

	num := 0
	var process func(c *Command) string
	process = func(c *Command) string {
		num++
		nid := fmt.Sprintf("n%d", num)

		label := c.Kind.String()
		if opts.ShowSteps {
			label = fmt.Sprintf("%d. %s", order[c], label)
		}
		fmt.Fprintf(w, "  %s[\"%s\"]\n", nid, label)
		if opts.CommandFill != "" {
			fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.CommandFill)
		}

		for i, x := range c.Payload {
			if sub, is := x.(*Command); is && sub != nil {
				to := process(sub)
				fmt.Fprintf(w, "  %s -- \"%d\" --> %s\n", nid, i, to)
				continue
			}
			if !opts.ShowValues {
				continue
			}
			num++
			to := fmt.Sprintf("n%d", num)
			s := strings.Replace(ValueString(x), `"`, `'`, -1)
			fmt.Fprintf(w, "  %s(\"%s\")\n", to, s)
			fmt.Fprintf(w, "  %s -- \"%d\" --> %s\n", nid, i, to)
		}

		return nid
	}

	process(c)

	_, err := fmt.Fprintf(w, "\n")
	return err
}
