package commands

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rhuss/askdoc/pkg/api"
)

// NewUploadCmd creates the upload command.
func NewUploadCmd(opts *rootOptions) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document, replacing the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening document: %w", err)
			}
			defer f.Close()

			ct := contentType
			if ct == "" {
				ct = mime.TypeByExtension(filepath.Ext(path))
			}

			doc, err := opts.client().Upload(cmd.Context(), filepath.Base(path), ct, f)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts, doc, func(w io.Writer) {
				printDocument(w, doc)
			})
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "content type of the document (default: from extension)")
	return cmd
}

func printDocument(w io.Writer, doc *api.Document) {
	fmt.Fprintf(w, "Loaded %s (%s)\n", doc.Name, doc.ID)
	fmt.Fprintf(w, "  pages:      %d\n", doc.Pages)
	fmt.Fprintf(w, "  chunks:     %d\n", doc.Chunks)
	fmt.Fprintf(w, "  generation: %d\n", doc.Generation)
}
