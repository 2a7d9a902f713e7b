package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/nestql/internal/cli"
)

var (
	// Set during PersistentPreRunE.
	cfg        *cli.Config
	configPath string
	logger     = slog.New(slog.DiscardHandler)

	// Persistent flags
	cfgFile string
	verbose int
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "nestql",
	Short: "Compile nested relation queries to PostgreSQL JSON",
	Long: `nestql - nested relation queries for PostgreSQL

nestql compiles a tree of related tables into one SELECT that returns the
whole tree as a single JSON document.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "completion", "version":
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}
		logger, err = cli.NewLogger(os.Stderr, cfg.Log.Level, verbose, quiet)
		if err != nil {
			return cli.ConfigError("log.level", err)
		}
		logger.Debug("configuration loaded", "path", configPath)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

const (
	groupQuery   = "query"
	groupUtility = "utility"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover nestql.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupQuery, Title: "Query:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	compileCmd.GroupID = groupQuery
	runCmd.GroupID = groupQuery
	doctorCmd.GroupID = groupQuery
	rootCmd.AddCommand(compileCmd, runCmd, doctorCmd)

	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd, versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty value: flag, then config.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
