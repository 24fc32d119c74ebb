package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"videoDigest/config"
	"videoDigest/core"
	"videoDigest/processors"
	"videoDigest/server"
	"videoDigest/storage"
	"videoDigest/watch"
)

func main() {
	godotenv.Load()
	config.InitLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		config.Log.WithError(err).Fatal("configuration unusable")
	}

	pipeline, err := processors.NewPipeline(cfg)
	if err != nil {
		var cfgErr *core.ConfigurationError
		if errors.As(err, &cfgErr) {
			config.PrintConfigInstructions()
		}
		config.Log.WithError(err).Fatal("pipeline setup failed")
	}

	if err := core.EnsureDir(core.DataRoot()); err != nil {
		config.Log.WithError(err).Fatal("data root unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "serve":
		store := storage.NewVectorStore(ctx, cfg)
		srv := server.New(cfg, pipeline, store)
		if err := srv.Run(ctx, serverPort()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.Log.WithError(err).Fatal("server stopped")
		}
	case "watch":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: videoDigest watch <dir>")
			os.Exit(2)
		}
		store := storage.NewVectorStore(ctx, cfg)
		runWatch(ctx, cfg, pipeline, store, os.Args[2])
	case "process":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: videoDigest process <video-path>")
			os.Exit(2)
		}
		runOnce(ctx, pipeline, os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: videoDigest [serve|watch <dir>|process <video-path>]\n", command)
		os.Exit(2)
	}
}

func serverPort() int {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			return p
		}
	}
	return 8080
}

// runOnce processes a single file and prints the outcome to stdout, for
// shell use.
func runOnce(ctx context.Context, pipeline *processors.Pipeline, path string) {
	outcome := pipeline.Run(ctx, path)
	fmt.Println(string(core.MustJSON(outcome)))
	if !outcome.Succeeded() {
		os.Exit(1)
	}
}

func runWatch(ctx context.Context, cfg *config.Config, pipeline *processors.Pipeline, store storage.VectorStore, dir string) {
	handler := func(ctx context.Context, path string) error {
		outcome := pipeline.Run(ctx, path)
		if !outcome.Succeeded() {
			return fmt.Errorf("stage %s: %s", outcome.FailedStage, outcome.Message)
		}
		items := storage.BuildIndexItems(outcome.Artifact)
		if _, err := store.Upsert(ctx, outcome.Artifact.VideoID, items); err != nil {
			config.Log.WithError(err).Warn("indexing failed")
		}
		return nil
	}
	watcher, err := watch.New(dir, cfg.MaxWorkers, handler)
	if err != nil {
		config.Log.WithError(err).Fatal("watch setup failed")
	}
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		config.Log.WithError(err).Fatal("watcher stopped")
	}
}
