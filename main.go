// Package main is the entry point for the studygraph MCP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wagnerlima/studygraph/internal/config"
	"github.com/wagnerlima/studygraph/internal/logging"
	"github.com/wagnerlima/studygraph/internal/schema"
	"github.com/wagnerlima/studygraph/internal/server"
	"github.com/wagnerlima/studygraph/internal/storage"
)

const version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags struct {
		transport string
		httpAddr  string
		graph     string
		sessions  string
		vocab     string
	}

	root := &cobra.Command{
		Use:           "studygraph",
		Short:         "Study-tracking knowledge graph MCP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// Flags beat environment values.
			if cmd.Flags().Changed("transport") {
				cfg.Transport = flags.transport
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTPAddr = flags.httpAddr
			}
			if cmd.Flags().Changed("graph") {
				cfg.GraphPath = flags.graph
			}
			if cmd.Flags().Changed("sessions") {
				cfg.SessionsPath = flags.sessions
			}
			if cmd.Flags().Changed("vocab") {
				cfg.VocabPath = flags.vocab
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.ResolvePaths(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	root.Flags().StringVar(&flags.transport, "transport", config.TransportStdio, "Transport mode: stdio or http")
	root.Flags().StringVar(&flags.httpAddr, "http-addr", ":8080", "HTTP listen address (only used with --transport http)")
	root.Flags().StringVar(&flags.graph, "graph", "", "Path to the knowledge graph document")
	root.Flags().StringVar(&flags.sessions, "sessions", "", "Path to the session state document")
	root.Flags().StringVar(&flags.vocab, "vocab", "", "Path to a YAML vocabulary override")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("studygraph %s (%s)\n", version, runtime.Version())
		},
	})
	return root
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Environment)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	vocab, err := schema.Load(cfg.VocabPath)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}

	graph, err := storage.OpenGraph(cfg.GraphPath, vocab, log)
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	sessions, err := storage.OpenSessions(cfg.SessionsPath, log)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	srv := server.New(graph, sessions, vocab, log)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cfg.Transport {
	case config.TransportStdio:
		log.Info("studygraph MCP server starting", zap.String("transport", "stdio"))
		return srv.Run(ctx, &mcp.StdioTransport{})
	case config.TransportHTTP:
		return serveHTTP(ctx, cfg.HTTPAddr, srv, log)
	default:
		return fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

func serveHTTP(ctx context.Context, addr string, srv *mcp.Server, log *zap.Logger) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv
	}, nil)
	httpServer := &http.Server{Addr: addr, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("studygraph MCP server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
