// Command mock-backend runs a deterministic OpenAI-compatible server with
// embeddings and chat completions, for running askdoc with the "openai"
// providers without a real model server.
//
// Configuration:
//
//	MOCK_PORT       - Listen port (default: 9090)
//	MOCK_DIMENSIONS - Embedding vector size (default: 64)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rhuss/askdoc/pkg/mockbackend"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	dims := mockbackend.DefaultDimensions
	if v := os.Getenv("MOCK_DIMENSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Error("invalid MOCK_DIMENSIONS", "value", v, "error", err)
			os.Exit(1)
		}
		dims = n
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mockbackend.New(dims).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "dimensions", dims)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
