package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cmdCreate() *cobra.Command {
	p := &createParams{}
	cmd := &cobra.Command{
		Use:           "create BUNDLE",
		Short:         "Create or reuse the dependency package for a bundle",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := p.server.client()
			if err != nil {
				return err
			}
			builder, err := p.pipeline.builder(client)
			if err != nil {
				return err
			}

			result, err := builder.CreatePackage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if result.Reused {
				fmt.Printf("reused %s\n", result.Filename)
			} else {
				fmt.Printf("created %s\n", result.Filename)
			}
			return nil
		},
	}

	p.addFlagsTo(cmd)
	return cmd
}

type createParams struct {
	server   serverParams
	pipeline pipelineParams
}

func (p *createParams) addFlagsTo(cmd *cobra.Command) {
	p.server.addFlagsTo(cmd)
	p.pipeline.addFlagsTo(cmd)
}
