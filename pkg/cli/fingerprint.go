package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atriumdesk/bundlectl/pkg/fingerprint"
)

func cmdFingerprint() *cobra.Command {
	p := &fingerprintParams{}
	cmd := &cobra.Command{
		Use:           "fingerprint BUNDLE",
		Short:         "Compute a bundle's dependency fingerprint without building anything",
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

			fp, match, err := builder.Fingerprint(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("fingerprint: %s\n", fp)
			fmt.Printf("digest: %s\n", fingerprint.Digest(fp))
			if match != nil {
				fmt.Printf("reusable package: %s\n", match.Filename)
			} else {
				fmt.Println("reusable package: none")
			}
			return nil
		},
	}

	p.server.addFlagsTo(cmd)
	p.pipeline.addFlagsTo(cmd)
	return cmd
}

type fingerprintParams struct {
	server   serverParams
	pipeline pipelineParams
}
