package commands

import (
	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

var (
	verbose       bool
	loggerFactory logging.LoggerFactory
)

func Execute() error {
	root := &cobra.Command{
		Use:          "ssession",
		Short:        "Mutually authenticated encrypted sessions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f := logging.NewDefaultLoggerFactory()
			if verbose {
				f.DefaultLogLevel = logging.LogLevelDebug
			}
			loggerFactory = f
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(keygenCmd(), pubkeyCmd(), listenCmd(), connectCmd(), demoCmd(), versionCmd())
	return root.Execute()
}
