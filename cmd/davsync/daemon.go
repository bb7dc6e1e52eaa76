package main

import (
	"log/slog"

	"github.com/openmined/davsync/internal/client"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync all collections periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			logCloser, err := attachLogFile(cfg.LogFile)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			c, err := client.New(cfg)
			if err != nil {
				return err
			}
			if err := c.Open(); err != nil {
				return err
			}
			defer c.Close()

			slog.Info("davsync daemon", "config", cfg.Path, "log", cfg.LogFile)
			return c.Run(cmd.Context())
		},
	}
	return cmd
}
