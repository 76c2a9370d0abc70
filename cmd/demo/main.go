// Command demo walks through the askdoc lifecycle against a running
// server: it clears the store, asks the questions without a document,
// uploads a document and asks them again.
//
// Usage:
//
//	demo [-server URL] [-strategy SIMILAR|MMR] document.pdf [question ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/client"
)

var defaultQuestions = []string{
	"What is this document about?",
	"Who are the main people mentioned?",
	"What are the most important conclusions?",
}

func main() {
	server := flag.String("server", envOr("ASKDOC_URL", client.DefaultBaseURL), "askdoc server URL")
	strategy := flag.String("strategy", "SIMILAR", "retrieval strategy: SIMILAR or MMR")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: demo [-server URL] [-strategy S] document [question ...]")
		os.Exit(2)
	}
	if err := run(*server, *strategy, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(server, strategyName, path string, questions []string) error {
	strategy, err := api.ParseStrategy(strategyName)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		questions = defaultQuestions
	}

	ctx := context.Background()
	c := client.New(server, 5*time.Minute)

	fmt.Println("=== askdoc demo ===")

	if err := c.Clear(ctx); err != nil {
		return fmt.Errorf("clearing: %w", err)
	}
	fmt.Println("\n[1] Store cleared, asking without a document")
	if err := ask(ctx, c, strategy, questions); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := c.Upload(ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), f)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	fmt.Printf("\n[2] Uploaded %s: %d pages, %d chunks\n", doc.Name, doc.Pages, doc.Chunks)

	fmt.Println("\n[3] Asking with the document loaded")
	return ask(ctx, c, strategy, questions)
}

func ask(ctx context.Context, c *client.Client, strategy api.Strategy, questions []string) error {
	for _, q := range questions {
		answer, err := c.Ask(ctx, q, strategy)
		if err != nil {
			return fmt.Errorf("asking %q: %w", q, err)
		}
		fmt.Printf("\nQ: %s\nA: %s\n", q, strings.TrimSpace(answer.Answer))
		fmt.Printf("   (%d sources, %s)\n", len(answer.Sources), answer.Strategy)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
