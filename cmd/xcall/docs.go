package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Comcast/xcall/core"
	"github.com/Comcast/xcall/sio"
	"github.com/Comcast/xcall/tools"

	"github.com/spf13/cobra"
)

var docFlags struct {
	css []string
}

var docCmd = &cobra.Command{
	Use:   "doc html|dot|mermaid [FILE]",
	Short: "Document the command kinds or draw a command tree",
	Long: `"doc html" writes an HTML reference for the command kinds.

"doc dot" and "doc mermaid" read a JSON command (or a request with a
command) from FILE or stdin and draw its tree, with each command numbered
in resolution order.`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"html", "dot", "mermaid"},
	RunE:      doc,
}

func init() {
	docCmd.Flags().StringSliceVar(&docFlags.css, "css", nil, "CSS files for the HTML page")
}

// readCommand decodes either a request or a bare command.
func readCommand(in io.Reader) (*core.Command, error) {
	bs, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	var req sio.Request
	if err = (sio.JSONCodec{}).Unmarshal(bs, &req); err == nil && req.Command != nil {
		return sio.DecodeCommand(req.Command)
	}
	var wc sio.WireCommand
	if err = (sio.JSONCodec{}).Unmarshal(bs, &wc); err != nil {
		return nil, err
	}
	return sio.DecodeCommand(&wc)
}

func doc(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if args[0] == "html" {
		return tools.RenderKindsPage(out, docFlags.css)
	}

	in := cmd.InOrStdin()
	if len(args) == 2 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	c, err := readCommand(in)
	if err != nil {
		return err
	}

	switch args[0] {
	case "dot":
		return tools.Dot(c, out)
	case "mermaid":
		return tools.Mermaid(c, out, nil)
	default:
		return fmt.Errorf("unknown doc '%s'", args[0])
	}
}
