package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "batchd",
		Short:         "Cron driven batch job scheduler",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
	}
	cfg.BindFlags(cmd.PersistentFlags())

	jobsCmd := NewJobsRootCmd()
	jobsCmd.AddCommand(NewJobsListCmd(cfg), NewJobsGetCmd(cfg), NewJobsSeedCmd(cfg))
	cmd.AddCommand(NewServeCmd(cfg), jobsCmd)
	return cmd
}
