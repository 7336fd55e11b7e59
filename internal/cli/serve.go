package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/herbia/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the suggestion and identification HTTP API",
	Long: `Serve starts the HTTP API:

  GET  /api/health
  GET  /api/quota
  POST /api/plants/suggest
  POST /api/plants/identify

Example:
  herbia serve --addr :8080
  HERBIA_QUOTA_BACKEND=redis HERBIA_QUOTA_REDIS_ADDR=localhost:6379 herbia serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().StringSlice("allow-origin", nil, "CORS allowed origins (default: any)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.allow_origins", serveCmd.Flags().Lookup("allow-origin"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, services, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() { _ = services.Close() }()

	if cfg.Log.Mode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	if services.Provider != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := services.Provider.Check(checkCtx); err != nil {
			log.Warn("LLM provider check failed", "provider", services.Provider.Name(), "error", err)
		}
		cancel()
	}
	if !services.Identifier.Configured() {
		log.Warn("PLANTNET_API_KEY not set; identification requests will fail")
	}

	srv := server.New(cfg.Server, server.Deps{
		Suggester:  services.Pipeline,
		Identifier: services.Identifier,
		Quota:      services.Gate,
		Version:    version,
	}, log)
	return srv.Run(ctx)
}
