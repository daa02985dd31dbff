package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Yates-Labs/storyprompt/internal/server"
	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web interface",
	Long: `Serve the browser interface and its JSON API.

Each visitor gets an in-memory session holding the drawn elements and the
stories generated so far. Sessions idle for longer than SESSION_IDLE_TIMEOUT
are dropped. Nothing is persisted across restarts.

Endpoints:
  GET  /           web page
  GET  /health     health check
  GET  /metrics    Prometheus metrics
  /api/...         JSON API

Examples:
  storyprompt serve
  storyprompt serve --addr :3000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default from LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()
	if cmd.Flags().Changed("addr") {
		a.cfg.ListenAddr = listenAddr
	}
	gin.SetMode(a.cfg.GinMode)

	store := session.NewStore(a.catalogue,
		session.WithSamplerFactory(a.newSampler),
		session.WithInitialElements(a.cfg.ElementCount),
	)
	srv := server.New(store, a.cfg, server.WithLogger(a.log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("Catalogue ready",
		zap.String("source", a.catalogue.Source),
		zap.Int("groups", a.catalogue.Len()),
		zap.Int("variants", a.catalogue.TotalVariants()),
		zap.Bool("fallback", a.catalogue.Fallback),
	)
	return srv.Run(ctx)
}
