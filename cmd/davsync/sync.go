package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/openmined/davsync/internal/client"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [collection-id...]",
		Short: "Run one sync cycle for all or the given collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			manual, _ := cmd.Flags().GetBool("manual")

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

			var reports []*client.Report
			if len(args) == 0 {
				report, err := c.SyncAll(cmd.Context(), manual)
				if err != nil {
					return err
				}
				reports = append(reports, report)
			}
			for _, id := range args {
				report, err := c.SyncCollection(cmd.Context(), id, manual)
				if err != nil {
					return err
				}
				reports = append(reports, report)
			}

			failed := 0
			for _, report := range reports {
				client.LogReport(report)
				printReport(cmd.OutOrStdout(), report)
				failed += len(report.Failures)
			}
			if failed > 0 {
				return fmt.Errorf("%d collection(s) failed to sync", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolP("manual", "m", false, "user-triggered sync, always compare the full collection")
	return cmd
}

func printReport(w io.Writer, report *client.Report) {
	r := report.Result
	fmt.Fprintf(w, "%s %s up, %s down, %s deleted, %s conflicts %s\n",
		green.Render("SYNC"),
		humanize.Comma(r.NumUploads),
		humanize.Comma(r.NumDownloads),
		humanize.Comma(r.NumDeletes),
		humanize.Comma(r.NumConflicts),
		gray.Render("("+report.Took.String()+")"),
	)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "%s %s %s\n", red.Render("FAIL"), cyan.Render(f.CollectionID), f.Failure.Message())
	}
}
