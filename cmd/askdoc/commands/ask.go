package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/askdoc/pkg/api"
)

// NewAskCmd creates the ask command.
func NewAskCmd(opts *rootOptions) *cobra.Command {
	var (
		strategy    string
		showSources bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the active document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := api.ParseStrategy(strategy)
			if err != nil {
				return err
			}

			answer, err := opts.client().Ask(cmd.Context(), strings.Join(args, " "), s)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts, answer, func(w io.Writer) {
				fmt.Fprintln(w, answer.Answer)
				if !showSources {
					return
				}
				for i, src := range answer.Sources {
					fmt.Fprintf(w, "\n[%d] %s\n", i+1, strings.TrimSpace(src))
				}
			})
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "SIMILAR", "retrieval strategy: SIMILAR or MMR")
	cmd.Flags().BoolVar(&showSources, "sources", false, "print the chunks the answer is based on")
	return cmd
}
