package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/openmined/davsync/internal/client"
	"github.com/openmined/davsync/internal/client/config"
	"github.com/openmined/davsync/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local replica and outstanding sync errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dataDir, err := replicaDir(cfg)
			if err != nil {
				return err
			}
			if !utils.DirExists(dataDir) {
				fmt.Fprintln(cmd.OutOrStdout(), gray.Render("no replica in "+dataDir+", run `davsync sync` first"))
				return nil
			}

			store, notices, err := client.OpenStore(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := client.Status(store, notices)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

// replicaDir is the data directory without requiring a complete config.
func replicaDir(cfg *config.Config) (string, error) {
	if cfg.DataDir == "" {
		return config.DefaultDataDir, nil
	}
	return utils.ResolvePath(cfg.DataDir)
}

func printStatus(w io.Writer, list []*client.CollectionStatus) {
	if len(list) == 0 {
		fmt.Fprintln(w, gray.Render("no collections synced yet"))
		return
	}

	for _, st := range list {
		state := green.Render("OK")
		if st.Notification != nil {
			state = red.Render("ERROR")
		}
		fmt.Fprintf(w, "%s %s %s\n", bold.Render(st.Info.ID), gray.Render(st.Info.Kind), state)
		fmt.Fprintf(w, "  %s%s\n", labelCell.Render("url"), st.Info.URL)
		fmt.Fprintf(w, "  %s%s\n", labelCell.Render("ctag"), orNone(st.Info.CTag))
		fmt.Fprintf(w, "  %s%s total, %s dirty, %s deleted\n", labelCell.Render("resources"),
			humanize.Comma(int64(st.Stats.Total)), humanize.Comma(int64(st.Stats.Dirty)), humanize.Comma(int64(st.Stats.Deleted)))

		if n := st.Notification; n != nil {
			fmt.Fprintf(w, "  %s%s: %s %s\n", labelCell.Render("error"), n.Title, n.Message, gray.Render(humanize.Time(n.CreatedAt)))
			if n.Error != "" {
				fmt.Fprintf(w, "  %s%s\n", labelCell.Render("detail"), n.Error)
			}
			if n.RetryAfter > 0 {
				fmt.Fprintf(w, "  %s%s\n", labelCell.Render("retry after"), yellow.Render(n.RetryAfter.String()))
			}
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return gray.Render("none")
	}
	return s
}
