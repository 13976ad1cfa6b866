// Package cli implements the pyble command line interface.
package cli

import (
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all subcommands.
type RootOptions struct {
	StorePath string
	LogLevel  string

	log logger.Logger
}

// NewRootCommand creates the root command for the pyble CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "pyble",
		Short:         "pyble - tamper evident story trees in a slot addressed block store",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.New(opts.LogLevel)
			opts.log = logger.Sugar.WithServiceName("pyble")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.OnExit()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.StorePath, "store", "s", "pyble.db", "path to the block store file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "loglevel", "NOOP", "log level (NOOP|DEBUG|INFO)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewAppendCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewResizeCommand(opts))
	cmd.AddCommand(NewSealCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}
