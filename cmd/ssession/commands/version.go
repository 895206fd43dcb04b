package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backkem/ssession/pkg/session"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the library and protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), session.Version())
			return nil
		},
	}
}
