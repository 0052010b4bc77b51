package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashureev/tutor-client/internal/stubserver"
)

func newStubCmd(a *app) *cobra.Command {
	var origins []string

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run a local tutor server for development",
		Long: "Serves the tutor WebSocket and the conversation and analytics endpoints with " +
			"canned lessons and generated three-question assessments, so the client can be used offline.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("Starting stub server", "port", a.cfg.Stub.Port, "thinking_time", a.cfg.Stub.ThinkingTime)
			srv := stubserver.New(stubserver.Options{
				Addr:           ":" + a.cfg.Stub.Port,
				ThinkingTime:   a.cfg.Stub.ThinkingTime,
				AllowedOrigins: origins,
				Logger:         a.logger,
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringSliceVar(&origins, "allow-origin", []string{"*"}, "origins allowed by CORS")
	return cmd
}
