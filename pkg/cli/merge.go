package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

func cmdMerge() *cobra.Command {
	p := &mergeParams{}
	cmd := &cobra.Command{
		Use:           "merge MANIFEST...",
		Short:         "Merge addon manifest files and print the combined manifest",
		Long: "Merge reads addon manifest TOML files in argument order, resolves " +
			"platform variants for the target platform, intersects overlapping " +
			"constraints and prints the merged manifest. A version conflict or a " +
			"missing platform variant fails the merge and names the culprit.",
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			merged := manifest.New()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				doc, err := manifest.ParseDocument(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				name := doc.Atrium.Name
				if name == "" {
					name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				merged, err = manifest.Merge(merged, manifest.AddonContribution{
					Name:    name,
					Version: doc.Atrium.Version,
					Doc:     doc,
				}, p.platform)
				if err != nil {
					return err
				}
			}

			out, err := manifest.MarshalTOML(merged, appName, "")
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&p.platform, "platform", runtime.GOOS, "Target platform for variant selection")
	return cmd
}

type mergeParams struct {
	platform string
}
