package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/attrition/internal/server"
	"github.com/crimson-sun/attrition/pkg/attrition"
)

var addr string

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP prediction service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			p, err := attrition.New(append(predictorOptions(cfg), attrition.WithMetrics(reg))...)
			if err != nil {
				return err
			}
			defer p.Close()

			if cfg.Engine.Preload {
				if err := p.Warm(ctx); err != nil {
					return err
				}
			}

			srv := server.New(p, server.Options{
				RequestTimeout: cfg.Server.RequestTimeout,
				MaxBodyBytes:   cfg.Server.MaxBodyBytes,
				Gatherer:       reg,
				Logger:         logger,
			})
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $ATTRITION_ADDR or :8080)")
	return cmd
}
