// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the mycolist CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/internal/metrics"
	"github.com/pdiddy/mycolist/internal/secrets"
	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// app holds what PersistentPreRunE prepares for every command.
var app struct {
	cfg      types.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.ListMetrics
}

// rootCmd is the base command for the mycolist CLI.
var rootCmd = &cobra.Command{
	Use:   "mycolist",
	Short: "Build species lists of mushroom observations from typed names",
	Long: `mycolist keeps a catalog of taxonomic names and species lists of
observations. Lists are built from lines of free text: every line is parsed,
matched against the catalog, and either accepted or reported back with the
decision it needs (an ambiguous, deprecated, or new name). A list is written
only when every line is decided.

Subcommands manage lists, the name catalog, users, interests, specimens and
the activity log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		app.cfg = loadConfig()

		logger, err := newLogger(app.cfg.Log)
		if err != nil {
			return err
		}
		app.logger = logger

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		s.ApplyDatabase(&app.cfg.Database)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}

		app.registry = prometheus.NewRegistry()
		app.metrics, err = metrics.NewListMetrics(app.registry)
		return err
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./mycolist.yaml or ~/.config/mycolist/mycolist.yaml)")
	flags.String("driver", "", "database driver: sqlite3, sqlite, or pgx")
	flags.String("db", "", "SQLite database file")
	flags.String("dsn", "", "Postgres connection string")
	flags.StringP("user", "u", "", "login of the acting user")
	flags.String("log-level", "", "log level: debug, info, warn, or error")
	flags.BoolP("verbose", "v", false, "log at debug level")
	flags.String("metrics-file", "", "write Prometheus metrics to this file after the command")

	bind := map[string]string{
		"database.driver": "driver",
		"database.path":   "db",
		"database.dsn":    "dsn",
		"user":            "user",
		"log.level":       "log-level",
		"metrics.file":    "metrics-file",
		"verbose":         "verbose",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mycolist")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "mycolist"))
		}
	}

	viper.SetEnvPrefix("MYCOLIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("database.driver", string(types.DriverSQLite3))
	viper.SetDefault("database.path", "data/mycolist.db")
	viper.SetDefault("lists.duplicates", string(types.DuplicatesAppend))
	viper.SetDefault("lists.default_vote", types.VoteMaximum)
	score := types.DefaultScoreConfig()
	viper.SetDefault("lists.score.new_name", score.NewName)
	viper.SetDefault("lists.score.new_list", score.NewList)
	viper.SetDefault("lists.score.observation", score.Observation)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func loadConfig() types.Config {
	cfg := types.Config{
		Database: types.DatabaseConfig{
			Driver: types.DatabaseDriver(viper.GetString("database.driver")),
			Path:   viper.GetString("database.path"),
			DSN:    viper.GetString("database.dsn"),
		},
		Lists: types.ListsConfig{
			Duplicates:  types.DuplicatePolicy(viper.GetString("lists.duplicates")),
			DefaultVote: viper.GetInt("lists.default_vote"),
			Score: types.ScoreConfig{
				NewName:     viper.GetInt("lists.score.new_name"),
				NewList:     viper.GetInt("lists.score.new_list"),
				Observation: viper.GetInt("lists.score.observation"),
			},
		},
		Log: types.LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Metrics: types.MetricsConfig{
			File: viper.GetString("metrics.file"),
		},
	}
	if viper.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg
}

func newLogger(cfg types.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

func openStore() (*store.Store, error) {
	return store.Open(app.cfg.Database)
}

// actingUser returns the user named by --user or MYCOLIST_USER.
func actingUser(ctx context.Context, s *store.Store) (*types.User, error) {
	login := viper.GetString("user")
	if login == "" {
		return nil, errors.New("no acting user: pass --user or set MYCOLIST_USER")
	}
	u, err := s.UserByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("unknown user %q: run 'mycolist user add %s' first", login, login)
	}
	return u, err
}

// finish writes the metrics textfile, failed commands included, and
// flushes the logger.
func finish() error {
	if app.logger == nil {
		return nil
	}
	defer app.logger.Sync()
	if app.cfg.Metrics.File == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(app.cfg.Metrics.File, app.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

func main() {
	err := rootCmd.Execute()
	if ferr := finish(); ferr != nil {
		fmt.Fprintln(os.Stderr, "Error:", ferr)
		err = ferr
	}
	if err != nil {
		os.Exit(1)
	}
}
