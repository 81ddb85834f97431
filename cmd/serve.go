package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/store-locator/internal/metrics"
	"github.com/sells-group/store-locator/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP session API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initLocator("serve")
		if err != nil {
			return err
		}

		metrics.Init(version)

		srv := server.New(server.Options{
			Geocoder:           env.Geocoder,
			Search:             env.Searcher,
			Center:             mapCenter(),
			Zoom:               cfg.Map.Zoom,
			DefaultRadiusMiles: cfg.Search.DefaultRadiusMiles,
			AllowedOrigins:     cfg.Server.AllowedOrigins,
			SessionTTL:         time.Duration(cfg.Server.SessionTTLMins) * time.Minute,
			ReapInterval:       time.Duration(cfg.Server.ReapIntervalSecs) * time.Second,
		})
		return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
