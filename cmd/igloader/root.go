package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"igloader/pkg/logger"
	"igloader/pkg/ui"
)

var (
	// Version information, set with -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igloader",
	Short: "HTTP service that downloads single Instagram posts",
	Long: `igloader exposes an HTTP API that downloads a single Instagram post,
identified by its shortcode, into a directory below a fixed base directory.

  POST /api/v1/download/post   {"post_id": "...", "target_directory": "..."}
  GET  /health

Session cookies are optional. They can be configured directly or stored
with 'igloader auth login'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
	},
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printer(os.Stderr).Error("Error", err)
		os.Exit(1)
	}
}

// printer returns a ui.Printer honoring --no-color
func printer(f *os.File) *ui.Printer {
	p := ui.NewPrinter(f)
	if noColor {
		p.Color = false
	}
	return p
}

// flagMap collects the changed flags among names for config.Load
func flagMap(cmd *cobra.Command, names ...string) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("log-level") {
		flags["log-level"] = logLevel
	}

	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		switch f.Value.Type() {
		case "int":
			v, _ := cmd.Flags().GetInt(name)
			flags[name] = v
		case "bool":
			v, _ := cmd.Flags().GetBool(name)
			flags[name] = v
		default:
			flags[name] = f.Value.String()
		}
	}
	return flags
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default searches ./igloader.yaml, ~/.config/igloader/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(`igloader {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
