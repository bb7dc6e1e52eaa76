package main

import (
	"fmt"
	"io"

	"github.com/openmined/davsync/internal/client/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

// newInitCmd adds an account and its collections to the config file,
// creating the file if needed.
func newInitCmd() *cobra.Command {
	var (
		account      config.Account
		addressBooks []string
		calendars    []string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Add an account and its collections to the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(addressBooks)+len(calendars) == 0 {
				return fmt.Errorf("at least one --addressbook or --calendar is required")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			acc := findAccount(cfg, account.Name)
			if acc == nil {
				acc = &config.Account{Name: account.Name}
				cfg.Accounts = append(cfg.Accounts, acc)
			}
			if account.BaseURL != "" {
				acc.BaseURL = account.BaseURL
			}
			if account.Username != "" {
				acc.Username = account.Username
			}
			if account.Password != "" {
				acc.Password = account.Password
			}
			if account.Token != "" {
				acc.Token = account.Token
			}
			for _, u := range addressBooks {
				acc.Collections = append(acc.Collections, &config.CollectionConfig{URL: u, Kind: config.KindAddressBook})
			}
			for _, u := range calendars {
				acc.Collections = append(acc.Collections, &config.CollectionConfig{URL: u, Kind: config.KindCalendar})
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(cfg.Path); err != nil {
				return err
			}

			printAccount(cmd.OutOrStdout(), cfg, acc)
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&account.Name, "account", "a", "default", "account name")
	cmd.Flags().StringVarP(&account.BaseURL, "base-url", "u", "", "server base URL, collection URLs may be relative to it")
	cmd.Flags().StringVar(&account.Username, "username", "", "basic auth user")
	cmd.Flags().StringVar(&account.Password, "password", "", "basic auth password")
	cmd.Flags().StringVar(&account.Token, "token", "", "bearer token, replaces basic auth")
	cmd.Flags().StringArrayVar(&addressBooks, "addressbook", nil, "address book collection URL (repeatable)")
	cmd.Flags().StringArrayVar(&calendars, "calendar", nil, "calendar collection URL (repeatable)")

	return cmd
}

func findAccount(cfg *config.Config, name string) *config.Account {
	for _, acc := range cfg.Accounts {
		if acc.Name == name {
			return acc
		}
	}
	return nil
}

func printAccount(w io.Writer, cfg *config.Config, acc *config.Account) {
	fmt.Fprintf(w, "%s account %s\n", green.Render("SAVED"), bold.Render(acc.Name))
	fmt.Fprintf(w, "%s%s\n", labelCell.Render("config"), cyan.Render(cfg.Path))
	fmt.Fprintf(w, "%s%s\n", labelCell.Render("data dir"), cyan.Render(cfg.DataDir))
	for _, coll := range acc.Collections {
		fmt.Fprintf(w, "%s%s %s\n", labelCell.Render(coll.Kind), coll.ID, gray.Render(coll.URL))
	}
}
