package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"igloader/pkg/auth"
	"igloader/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igloader configuration files.

Configuration is merged from, in increasing priority:
  - default values
  - the configuration file
  - .env files and environment variables (IGLOADER_*, DOWNLOAD_DIR)
  - command line flags`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file with every option at its default value.

The file is created as 'igloader.yaml' in the current directory unless
--config names another path.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "igloader.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	out := printer(os.Stdout)
	out.Success("Configuration file created: " + path)
	out.Dim("Next: store session cookies with 'igloader auth login', then run 'igloader serve'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	display := *cfg
	masked := auth.SanitizeAccount(&auth.Account{
		SessionID: display.Instagram.SessionID,
		CSRFToken: display.Instagram.CSRFToken,
	})
	if display.Instagram.SessionID != "" {
		display.Instagram.SessionID = masked.SessionID
	}
	if display.Instagram.CSRFToken != "" {
		display.Instagram.CSRFToken = masked.CSRFToken
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	printer(os.Stdout).Highlight("Effective configuration")
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	out := printer(os.Stdout)
	var problems []error

	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create download directory: %w", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	if cfg.Instagram.SessionID == "" && cfg.Instagram.Account == "" {
		out.Warning("No session cookies or account configured; stored accounts or anonymous access will be used")
	}

	out.Success("Configuration is valid")
	out.Info("Listen address", cfg.Server.Addr)
	out.Info("Download directory", cfg.Output.BaseDirectory)
	out.Info("File name pattern", cfg.Output.FileNamePattern)
	out.Info("Concurrent downloads", fmt.Sprint(cfg.Download.ConcurrentDownloads))
	out.Info("Rate limit", fmt.Sprintf("%d requests/minute", cfg.RateLimit.RequestsPerMinute))
	out.Info("Retry attempts", fmt.Sprint(cfg.Retry.MaxAttempts))
	out.Info("Log level", cfg.Logging.Level)
	return nil
}
