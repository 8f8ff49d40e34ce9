package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/certs"
	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve insights and the assistant over HTTP",
		Long: `Start an HTTP server exposing insights, subscriptions, goal
feasibility, and the chat assistant as JSON endpoints, plus a WebSocket
chat at /ws. Every request is scoped by the X-User-ID header.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed localhost certificate")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	det := buildDetectors()
	defer det.Close()

	insightEngine, err := buildEngine(store, det)
	if err != nil {
		return fmt.Errorf("failed to create insight engine: %w", err)
	}

	orch, err := buildOrchestrator(store, det)
	if err != nil {
		return fmt.Errorf("failed to create assistant: %w", err)
	}

	serverConfig := server.Config{
		Addr: viper.GetString("server.addr"),
	}
	if viper.GetBool("server.tls") {
		certDir := config.ExpandPath("$HOME/.config/lens/certs")
		cert, certErr := certs.NewManager(certDir).GetOrCreate()
		if certErr != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", certErr)
		}
		serverConfig.TLSCert = &cert
	}

	srv, err := server.NewServer(server.Deps{
		Insights: store,
		Analyzer: insightEngine,
		Asker:    orch,
	}, serverConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info(cli.FormatTitle("Serving LedgerLens"), "addr", viper.GetString("server.addr"))
	return srv.Start(ctx)
}
