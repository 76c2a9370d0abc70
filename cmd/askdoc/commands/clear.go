package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rhuss/askdoc/pkg/transport"
)

// NewClearCmd creates the clear command.
func NewClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the active document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client().Clear(cmd.Context()); err != nil {
				return err
			}
			result := transport.ClearResult{Object: "document.deleted", Deleted: true}
			return writeOutput(cmd.OutOrStdout(), opts, result, func(w io.Writer) {
				fmt.Fprintln(w, "Document cleared.")
			})
		},
	}
}
