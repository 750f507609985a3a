package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fetchq/pkg/diagram"
	"github.com/matzehuels/fetchq/pkg/errors"
	"github.com/matzehuels/fetchq/pkg/query"
)

// Diagram output formats.
const (
	formatDOT = "dot"
	formatSVG = "svg"
)

// diagramOptions holds the flags of the diagram command.
type diagramOptions struct {
	Format   string
	Output   string
	Triggers bool
}

// diagramCommand creates the command that draws the coordinator state machine.
func (c *CLI) diagramCommand() *cobra.Command {
	var opts diagramOptions

	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Draw the fetch coordinator state machine",
		Long: `Diagram writes the states and transitions of a fetch coordinator as
Graphviz DOT or as an SVG rendered in-process.`,
		Example: `  fetchq diagram --triggers
  fetchq diagram -f svg -o states.svg`,
		Args:        cobra.NoArgs,
		Annotations: skipConfig(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagram(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", formatDOT, "output format: dot or svg")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.Triggers, "triggers", false, "label edges with their triggers")

	return cmd
}

func runDiagram(cmd *cobra.Command, opts diagramOptions) error {
	dot := diagram.ToDOT(query.Transitions, diagram.Options{Triggers: opts.Triggers})

	var data []byte
	switch opts.Format {
	case formatDOT:
		data = []byte(dot)
	case formatSVG:
		svg, err := diagram.RenderSVG(cmd.Context(), dot)
		if err != nil {
			return err
		}
		data = svg
	default:
		return errors.New(errors.ErrCodeUnsupported, "format %q (want dot or svg)", opts.Format)
	}

	if opts.Output == "" {
		return writeAll(cmd.OutOrStdout(), data)
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.Output, err)
	}
	printSuccess("Wrote %s diagram", opts.Format)
	printFile(opts.Output)
	return nil
}

func writeAll(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}
