package cmd

import (
	"github.com/spf13/cobra"
	"github.com/xaenox/mailsift/internal/server"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: http.addr from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.HTTP.Addr = serveAddr
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		return err
	}
	defer a.Close()

	h := server.NewHandler(a.processor, a.store, a.checks, logger)
	return server.Serve(ctx, cfg.HTTP.Addr, h.Router(a.metrics), logger)
}
