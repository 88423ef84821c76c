package cli

import (
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "bundlectl",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Manage dependency packages for Atrium bundles",
	}

	cmd.AddCommand(
		cmdCreate(),
		cmdLs(),
		cmdMerge(),
		cmdFingerprint(),
		cmdListen(),
		version.Version(),
	)

	return cmd
}
