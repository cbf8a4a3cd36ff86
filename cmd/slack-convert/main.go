// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the slack-convert CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/slack-convert/internal/convert"
	"github.com/pdiddy/slack-convert/internal/logging"
	"github.com/pdiddy/slack-convert/internal/orchestrate"
	"github.com/pdiddy/slack-convert/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	// defaultThreads matches the data export/import parallelism of the
	// target application.
	defaultThreads = 6

	exitGeneric    = 1
	exitValidation = 2
)

var (
	// appConfig is read once, before any command runs.
	appConfig types.Config

	logger = zerolog.Nop()
)

// rootCmd is the base command for the slack-convert CLI.
var rootCmd = &cobra.Command{
	Use:   "slack-convert",
	Short: "Convert Slack workspace exports into import-ready data",
	Long: `slack-convert drives conversion of Slack workspace export archives into
the data-interchange format consumed by the import tool. Each archive is
handed to a conversion engine, which runs as a container image or a local
command. Dispatches are recorded in a local history database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appConfig = loadConfig()
		l, err := logging.New(logging.Options{
			Level:  appConfig.Log.Level,
			Format: appConfig.Log.Format,
			Writer: os.Stderr,
		})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./slack-convert.yaml or ~/.config/slack-convert/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: auto, console, or json")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("slack-convert")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "slack-convert"))
		}
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("SLACK_CONVERT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("threads", defaultThreads)
	v.SetDefault("engine.backend", string(types.BackendContainer))
	v.SetDefault("engine.image", convert.DefaultImage)
	v.SetDefault("engine.runtime", "auto")
	v.SetDefault("engine.command", []string{})
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dir", defaultHistoryDir())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatAuto)
}

func defaultHistoryDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "slack-convert", "history")
	}
	return filepath.Join(".slack-convert", "history")
}

// loadConfig snapshots the viper settings into a Config.
func loadConfig() types.Config {
	return configFrom(viper.GetViper())
}

func configFrom(v *viper.Viper) types.Config {
	return types.Config{
		Conversion: types.ConversionConfig{
			Threads: v.GetInt("threads"),
			Engine: types.EngineConfig{
				Backend: types.EngineBackend(v.GetString("engine.backend")),
				Image:   v.GetString("engine.image"),
				Runtime: v.GetString("engine.runtime"),
				Command: v.GetStringSlice("engine.command"),
			},
		},
		History: types.HistoryConfig{
			Enabled: v.GetBool("history.enabled"),
			Dir:     v.GetString("history.dir"),
		},
		Log: types.LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

// exitCode maps command errors to process exit statuses.
func exitCode(err error) int {
	if orchestrate.IsValidation(err) {
		return exitValidation
	}
	return exitGeneric
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
