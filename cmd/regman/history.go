package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chis/regman/internal/config"
	"github.com/chis/regman/internal/logging"
	"github.com/chis/regman/internal/render"
	"github.com/chis/regman/internal/storage"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	var repo string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded deletions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			// History does not need a reachable registry, so skip bootstrap.
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return c.fail(out, err)
			}
			if !cfg.HistoryEnabled() {
				return c.fail(out, errors.New("deletion history is disabled"))
			}
			logging.SetDefault(logging.NewWithOptions(logging.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Output: cmd.ErrOrStderr(),
			}))

			store, err := storage.NewSQLiteStorage(cfg.HistoryDB)
			if err != nil {
				return c.fail(out, err)
			}
			defer store.Close()

			var entries []storage.DeletionEntry
			if repo != "" {
				entries, err = store.GetDeletionLog(cmd.Context(), repo, limit)
			} else {
				entries, err = store.GetAllDeletionLog(cmd.Context(), limit)
			}
			if err != nil {
				return c.fail(out, err)
			}
			return c.emit(out, entries, render.History(entries))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	cmd.Flags().StringVar(&repo, "repo", "", "Only show deletions from this repository")
	return cmd
}

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or persist the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (defaults < file < env < flags)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return c.fail(cmd.OutOrStdout(), err)
			}

			result := cfg.Validate()
			for _, w := range result.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", w)
			}
			for _, e := range result.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "Invalid:", e)
			}

			if c.opts.json {
				return c.emit(cmd.OutOrStdout(), cfg, "")
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate().Err(); err != nil {
				return err
			}

			path := c.opts.configPath
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteYAMLConfig(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.AddCommand(initCmd)

	return cmd
}
