package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/atriumdesk/bundlectl/pkg/directory"
)

func cmdLs() *cobra.Command {
	p := &lsParams{}
	cmd := &cobra.Command{
		Use:           "ls",
		Short:         "List bundles and their assigned dependency packages",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := p.server.client()
			if err != nil {
				return err
			}
			bundles, err := client.ListBundles(cmd.Context())
			if err != nil {
				return err
			}

			names := lo.Keys(bundles)
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BUNDLE\tSTAGE\tINSTALLER\tADDONS\tPACKAGES")
			for _, name := range names {
				b := bundles[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					b.Name, stageOf(b), b.InstallerVersion, len(b.Addons), packagesOf(b))
			}
			return w.Flush()
		},
	}

	p.server.addFlagsTo(cmd)
	return cmd
}

type lsParams struct {
	server serverParams
}

func stageOf(b directory.Bundle) string {
	switch {
	case b.IsProduction:
		return "production"
	case b.IsStaging:
		return "staging"
	default:
		return "-"
	}
}

func packagesOf(b directory.Bundle) string {
	if len(b.DependencyPackages) == 0 {
		return "-"
	}
	platforms := lo.Keys(b.DependencyPackages)
	sort.Strings(platforms)
	parts := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		parts = append(parts, fmt.Sprintf("%s=%s", platform, b.DependencyPackages[platform]))
	}
	return strings.Join(parts, " ")
}
