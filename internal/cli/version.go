package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/fhekit/internal/tui"
)

// AddVersionCommand adds the version command.
func AddVersionCommand(root *cobra.Command, global *GlobalFlags, info BuildInfo) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info = info.withDefaults()
			if global.Output == OutputJSON {
				return tui.NewJSONOutput(cmd.OutOrStdout()).JSON(map[string]string{
					"version": info.Version,
					"commit":  info.Commit,
					"date":    info.Date,
				})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "fhekit %s\n", formatVersion(info))
			return err
		},
	})
}
