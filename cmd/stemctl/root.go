package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stemctl",
		Short:         "Inspect stem assignments and comment logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newRolesCommand())
	rootCmd.AddCommand(newCommentsCommand())

	return rootCmd
}
