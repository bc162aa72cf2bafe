package main

import (
	"context"
	"fmt"
	"io"
	"time"

	survey "github.com/AlecAivazis/survey/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/chis/regman/internal/bootstrap"
	"github.com/chis/regman/internal/config"
	"github.com/chis/regman/internal/output"
	"github.com/chis/regman/internal/tui"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath  string
	envFile     string
	registry    string
	timeout     time.Duration
	concurrency int
	logLevel    string
	logFormat   string
	historyDB   string
	json        bool
}

// cli holds the flag values plus the interactive hooks tests replace.
type cli struct {
	opts rootOptions

	// confirm asks a yes/no question before destructive operations.
	confirm func(message string) (bool, error)
	// runTUI starts the interactive menu.
	runTUI func(ctx context.Context, deps *bootstrap.ServiceDependencies) error
}

func newCLI() *cli {
	return &cli{
		confirm: surveyConfirm,
		runTUI:  runInteractive,
	}
}

// reportedError marks an error already written to stdout as a JSON envelope.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "regman",
		Short: "Inspect and prune a Docker Registry V2",
		Long: `regman lists repositories and tags of a Docker Registry V2, shows
manifests, and deletes images by tag, by digest, or a whole repository at once.

Run without a subcommand to open the interactive menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := c.services(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()
			return c.runTUI(cmd.Context(), deps)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.opts.configPath, "config", "c", config.DefaultPath(), "Path to YAML config file")
	flags.StringVar(&c.opts.envFile, "env-file", ".env", "Path to .env file")
	flags.StringVarP(&c.opts.registry, "registry", "r", "", "Registry URL, e.g. https://registry.example.com:5000 (env "+config.EnvRegistry+")")
	flags.DurationVar(&c.opts.timeout, "timeout", 0, "Timeout for each registry request (default 30s)")
	flags.IntVar(&c.opts.concurrency, "concurrency", 0, "Parallel deletes for delete-all (default 4)")
	flags.StringVar(&c.opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&c.opts.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVar(&c.opts.historyDB, "history-db", "", `Deletion history database ("off" disables it)`)
	flags.BoolVar(&c.opts.json, "json", false, "Output in JSON format")

	rootCmd.AddCommand(
		newReposCmd(c),
		newTagsCmd(c),
		newManifestCmd(c),
		newDeleteCmd(c),
		newDeleteAllCmd(c),
		newHistoryCmd(c),
		newConfigCmd(c),
		newVersionCmd(c),
	)

	return rootCmd
}

// loadConfig layers defaults, the YAML file, the environment and then any
// flag the user set explicitly.
func (c *cli) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(c.opts.configPath, c.opts.envFile)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	var override config.Config
	if flags.Changed("registry") {
		override.Registry = c.opts.registry
	}
	if flags.Changed("timeout") {
		override.Timeout = c.opts.timeout
	}
	if flags.Changed("concurrency") {
		override.Concurrency = c.opts.concurrency
	}
	if flags.Changed("history-db") {
		override.HistoryDB = c.opts.historyDB
	}
	if flags.Changed("log-level") {
		override.LogLevel = c.opts.logLevel
	}
	if flags.Changed("log-format") {
		override.LogFormat = c.opts.logFormat
	}
	cfg = config.MergeConfigs(cfg, override)

	// MergeConfigs ignores non-positive values; reject them instead of
	// silently falling back.
	if flags.Changed("timeout") && c.opts.timeout <= 0 {
		cfg.Timeout = c.opts.timeout
	}
	if flags.Changed("concurrency") && c.opts.concurrency <= 0 {
		cfg.Concurrency = c.opts.concurrency
	}
	return cfg, nil
}

// services loads the configuration and initializes the shared dependencies.
func (c *cli) services(cmd *cobra.Command, skipStorage bool) (*bootstrap.ServiceDependencies, func(), error) {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return bootstrap.InitializeServices(cfg, bootstrap.InitOptions{
		LogOutput:   cmd.ErrOrStderr(),
		SkipStorage: skipStorage,
	})
}

// emit writes data as a JSON envelope in --json mode, or text otherwise.
func (c *cli) emit(w io.Writer, data interface{}, text string) error {
	if c.opts.json {
		return output.WriteJSONData(w, data)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// fail reports err. In --json mode it is written to w as an envelope and
// marked reported so main does not print it again.
func (c *cli) fail(w io.Writer, err error) error {
	if !c.opts.json {
		return err
	}
	if writeErr := output.WriteJSONError(w, err); writeErr != nil {
		return writeErr
	}
	return &reportedError{err: err}
}

func surveyConfirm(message string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	return ok, nil
}

func runInteractive(ctx context.Context, deps *bootstrap.ServiceDependencies) error {
	model := tui.NewModel(ctx, tui.Services{
		Client:   deps.Registry,
		Endpoint: deps.Registry.Endpoint().String(),
		History:  deps.Storage,
		Recorder: deps.Recorder,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// Redirect log output to the TUI for clean display
	prev := deps.LogOutput.Redirect(tui.NewLogWriter(program))
	defer deps.LogOutput.Redirect(prev)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
