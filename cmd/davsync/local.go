package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/openmined/davsync/internal/client"
	"github.com/openmined/davsync/internal/client/collections"
	"github.com/openmined/davsync/internal/client/config"
	"github.com/openmined/davsync/internal/localstore"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLocalCmd())
}

// newLocalCmd edits the local replica. Changes are marked dirty and reach the
// server with the next sync.
func newLocalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Inspect and edit the local replica of a collection",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls <collection-id>",
		Short: "List local resources",
		Args:  cobra.ExactArgs(1),
		RunE: withLocalCollection(func(cmd *cobra.Command, lc *localCollection, args []string) error {
			resources, err := lc.coll.Resources()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range resources {
				fmt.Fprintf(w, "%s %s %s %s\n",
					cyan.Render(labelCell.Render(strconv.FormatInt(r.LocalID, 10))),
					orNone(r.FileName()),
					gray.Render(r.UID),
					resourceState(r))
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <collection-id> <resource-id>",
		Short: "Print the content of a local resource",
		Args:  cobra.ExactArgs(2),
		RunE: withLocalCollection(func(cmd *cobra.Command, lc *localCollection, args []string) error {
			r, err := lc.resource(args[1])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), r.Content)
			return err
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <collection-id> <file|->",
		Short: "Add a resource from a file or stdin",
		Args:  cobra.ExactArgs(2),
		RunE: withLocalCollection(func(cmd *cobra.Command, lc *localCollection, args []string) error {
			content, err := lc.readContent(cmd, args[1])
			if err != nil {
				return err
			}
			r, err := lc.coll.Add(content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", green.Render("ADDED"), r.LocalID)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit <collection-id> <resource-id> <file|->",
		Short: "Replace the content of a resource from a file or stdin",
		Args:  cobra.ExactArgs(3),
		RunE: withLocalCollection(func(cmd *cobra.Command, lc *localCollection, args []string) error {
			r, err := lc.resource(args[1])
			if err != nil {
				return err
			}
			content, err := lc.readContent(cmd, args[2])
			if err != nil {
				return err
			}
			if err := lc.coll.Update(r.LocalID, content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", green.Render("UPDATED"), r.LocalID)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <collection-id> <resource-id>",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(2),
		RunE: withLocalCollection(func(cmd *cobra.Command, lc *localCollection, args []string) error {
			r, err := lc.resource(args[1])
			if err != nil {
				return err
			}
			// never uploaded, nothing to delete remotely
			if !r.Name.Valid {
				err = r.Delete()
			} else {
				err = lc.coll.MarkDeleted(r.LocalID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", yellow.Render("DELETED"), r.LocalID)
			return nil
		}),
	})

	return cmd
}

type localCollection struct {
	coll   *localstore.Collection
	format collections.Format
}

func withLocalCollection(fn func(cmd *cobra.Command, lc *localCollection, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig(cmd)
		if err != nil {
			return err
		}
		collCfg, err := findCollection(cfg, args[0])
		if err != nil {
			return err
		}
		format, err := collections.FormatFor(collCfg.Kind)
		if err != nil {
			return err
		}

		store, _, err := client.OpenStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		coll, err := store.Collection(collCfg.ID, replicaURL(store, collCfg), format.Kind, format.FileExt)
		if err != nil {
			return err
		}
		return fn(cmd, &localCollection{coll: coll, format: format}, args)
	}
}

func findCollection(cfg *config.Config, id string) (*config.CollectionConfig, error) {
	for _, acc := range cfg.Accounts {
		for _, coll := range acc.Collections {
			if coll.ID == id {
				return coll, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", client.ErrUnknownCollection, id)
}

// replicaURL keeps the URL the replica was synced with, which is normalized
// by the transport.
func replicaURL(store *localstore.Store, coll *config.CollectionConfig) string {
	infos, err := store.Collections()
	if err == nil {
		for _, info := range infos {
			if info.ID == coll.ID {
				return info.URL
			}
		}
	}
	return coll.URL
}

func (lc *localCollection) resource(arg string) (*localstore.Resource, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid resource id %q", arg)
	}
	return lc.coll.Get(id)
}

func (lc *localCollection) readContent(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}

	content := string(data)
	if err := lc.format.Validate(content); err != nil {
		return "", err
	}
	return content, nil
}

func resourceState(r *localstore.Resource) string {
	switch {
	case r.IsDeleted:
		return red.Render("deleted")
	case r.IsDirty:
		return yellow.Render("dirty")
	default:
		return green.Render("clean")
	}
}
