package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atriumdesk/bundlectl/pkg/listener"
)

func cmdListen() *cobra.Command {
	p := &listenParams{}
	cmd := &cobra.Command{
		Use:           "listen",
		Short:         "Run as a worker, creating dependency packages on demand",
		Long: "Listen polls the directory service's job queue for package-creation " +
			"requests targeting this platform and runs the pipeline for each claimed " +
			"job until interrupted.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := p.server.client()
			if err != nil {
				return err
			}
			builder, err := p.pipeline.builder(client)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			l := &listener.Listener{
				Events:       client,
				Builder:      builder,
				Platform:     p.pipeline.platform,
				PollInterval: p.pollInterval,
			}
			if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	p.server.addFlagsTo(cmd)
	p.pipeline.addFlagsTo(cmd)
	cmd.Flags().DurationVar(&p.pollInterval, "poll-interval", 10*time.Second, "Job queue polling interval")
	return cmd
}

type listenParams struct {
	server       serverParams
	pipeline     pipelineParams
	pollInterval time.Duration
}
