// Package commands implements the askdoc CLI subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rhuss/askdoc/pkg/client"
)

// rootOptions holds the persistent flags shared by all subcommands.
type rootOptions struct {
	server  string
	timeout time.Duration
	format  string
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, o.timeout)
}

// NewRootCmd creates the askdoc root command with all subcommands attached.
func NewRootCmd(version string) *cobra.Command {
	// .env is optional.
	_ = godotenv.Load()

	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "askdoc",
		Short: "Ask questions about a document",
		Long: `askdoc talks to an askdoc server holding a single document.

Upload a PDF or text file, then ask questions that are answered from its
content only. Uploading a new document replaces the previous one.

Examples:
  askdoc upload manual.pdf
  askdoc ask "How long is the warranty?"
  askdoc ask --strategy mmr "What are the safety instructions?"
  askdoc status
  askdoc clear`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("ASKDOC_URL")
	if server == "" {
		server = client.DefaultBaseURL
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "askdoc server URL (env ASKDOC_URL)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "request timeout")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format: text or json")

	cmd.AddCommand(
		NewUploadCmd(opts),
		NewAskCmd(opts),
		NewClearCmd(opts),
		NewStatusCmd(opts),
	)
	return cmd
}

// writeOutput prints v as indented JSON when --format json is set and
// calls text otherwise.
func writeOutput(w io.Writer, opts *rootOptions, v any, text func(io.Writer)) error {
	switch opts.format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(w, "%s\n", data)
		return nil
	case "text", "":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or json)", opts.format)
	}
}
