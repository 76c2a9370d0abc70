package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rhuss/askdoc/pkg/api"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := opts.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts, status, func(w io.Writer) {
				if status.State != api.DocumentStateLoaded || status.Document == nil {
					fmt.Fprintln(w, "No document loaded.")
					return
				}
				printDocument(w, status.Document)
			})
		},
	}
}
