package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pthm/nestql/internal/cli"
)

var (
	configShowSource bool
	configInitYes    bool
	configInitForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long:  `Show the effective configuration after merging defaults, config file, and environment variables. Passwords are redacted.`,
	Example: `  # Show effective configuration
  nestql config show

  # Show configuration with source file path
  nestql config show --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(cmd.OutOrStdout(), cfg, configPath, configShowSource)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter nestql.yaml",
	Long:  `Prompt for connection settings and write a config file. With --yes the defaults are written without prompting.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "nestql.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return cli.GeneralError(path+" already exists (use --force to overwrite)", nil)
		}

		c := starterConfig()
		if !configInitYes {
			if err := promptConfig(&c); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return cli.GeneralError("reading answers", err)
			}
		}
		if err := writeConfig(path, c); err != nil {
			return cli.GeneralError("writing "+path, err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowSource, "source", false, "show config file source")
	configInitCmd.Flags().BoolVarP(&configInitYes, "yes", "y", false, "write defaults without prompting")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd)
}

func showConfig(w io.Writer, c *cli.Config, source string, withSource bool) error {
	if withSource {
		if source != "" {
			fmt.Fprintf(w, "Config file: %s\n\n", source)
		} else {
			fmt.Fprint(w, "Config file: (none, using defaults)\n\n")
		}
	}

	out, err := yaml.Marshal(redact(*c))
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// redact hides the database password in both the discrete field and the
// URL.
func redact(c cli.Config) cli.Config {
	if c.Database.Password != "" {
		c.Database.Password = "xxxxx"
	}
	if u, err := url.Parse(c.Database.URL); err == nil && u.User != nil {
		c.Database.URL = u.Redacted()
	}
	return c
}

// starterConfig is what config init writes without prompting.
func starterConfig() cli.Config {
	return cli.Config{
		Database: cli.DatabaseConfig{Port: 5432, SSLMode: "prefer"},
		Compile:  cli.CompileConfig{Params: true, Format: "sql"},
		Run:      cli.RunConfig{Driver: "postgres", Timeout: 30 * time.Second, Pretty: true},
		Log:      cli.LogConfig{Level: "warn"},
	}
}

func promptConfig(c *cli.Config) error {
	timeout := c.Run.Timeout.String()
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Database URL").
				Placeholder("postgres://user@localhost:5432/app").
				Value(&c.Database.URL),
			huh.NewSelect[string]().
				Title("Driver").
				Options(huh.NewOptions("postgres", "pgx")...).
				Value(&c.Run.Driver),
			huh.NewInput().
				Title("Query timeout").
				Value(&timeout).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&c.Log.Level),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	d, err := time.ParseDuration(timeout)
	if err != nil {
		return err
	}
	c.Run.Timeout = d
	return nil
}

func writeConfig(path string, c cli.Config) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
