package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qiao-925/ragsync/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var (
		asJSON  bool
		asShort bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch {
			case asShort:
				fmt.Fprintln(out, version.Short())
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.GetInfo())
			default:
				fmt.Fprintln(out, version.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build info as JSON")
	cmd.Flags().BoolVar(&asShort, "short", false, "Print only the version number")

	return cmd
}
