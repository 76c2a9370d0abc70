// Command askdoc-mcp serves the askdoc tools over MCP for a remote askdoc
// server. By default it speaks MCP on stdin/stdout, which is how desktop
// agents launch local tool servers. With PORT set it serves streamable
// HTTP on /mcp instead.
//
// Configuration:
//
//	ASKDOC_URL - askdoc server URL (default: http://localhost:8080)
//	PORT       - serve streamable HTTP on this port instead of stdio
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/askdoc/pkg/client"
	"github.com/rhuss/askdoc/pkg/mcpserver"
)

var version = "dev"

func main() {
	// .env is optional.
	_ = godotenv.Load()

	// stdout carries the MCP protocol, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	svc := client.NewService(client.New(os.Getenv("ASKDOC_URL"), 5*time.Minute))
	server := mcpserver.New(svc, version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		if err := server.MCP().Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("mcp server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("askdoc mcp server starting", "port", port, "askdoc", os.Getenv("ASKDOC_URL"))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mcp server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
