package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/karolinaw/hippocampus/internal/config"
	"github.com/karolinaw/hippocampus/internal/embedder"
	"github.com/karolinaw/hippocampus/internal/engine"
	"github.com/karolinaw/hippocampus/internal/server"
	"github.com/karolinaw/hippocampus/internal/storage"
)

func main() {
	transport := flag.String("transport", "stdio", "Transport mode: stdio or http")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	store, err := storage.Open(cfg.DBPath, cfg.Passphrase)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	emb := embedder.NewONNX(embedder.Config{
		CacheDir:      cfg.ModelDir,
		SharedLibrary: cfg.ONNXRuntime,
	})
	defer emb.Close()

	eng := engine.New(store, emb)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Repair any observation left without an embedding by a prior crash
	// or model outage.
	if _, _, err := eng.Backfill(ctx); err != nil {
		log.Printf("Backfill error: %v", err)
	}

	srv := server.New(eng)

	switch *transport {
	case "stdio":
		log.Println("Hippocampus memory server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case "http":
		addr := cfg.Host + ":" + cfg.Port
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil)
		log.Printf("Hippocampus memory server listening on %s", addr)
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	default:
		log.Fatalf("Unknown transport: %s (use stdio or http)", *transport)
	}
}
