package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guiyumin/vbrief/internal/core/config"
	"github.com/guiyumin/vbrief/internal/core/version"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vbrief",
	Short: "Summarize web pages, videos, and text with an LLM",
	Long: `vbrief turns a web page, a YouTube video, or a block of text into a short
summary with highlights, then answers a few follow-up questions about it.

Videos use captions when they exist and fall back to speech-to-text.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: "+config.SavePath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")
}

// Execute runs the root command and prints any error in red.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	}
	return err
}

// loadConfig reads --config when given, else the default location, and
// applies environment overrides before validating.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.LoadFile(configFile)
		if err != nil {
			return nil, err
		}
		loaded.ApplyEnv(os.Getenv)
		cfg = loaded
	} else {
		if !config.Exists() {
			fmt.Fprintln(os.Stderr, color.YellowString("Config file not found, using defaults. Run 'vbrief init'."))
		}
		cfg = config.LoadOrDefault()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliLogger keeps interactive output quiet unless --verbose is set.
func cliLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	lc := cfg.Log
	if verbose {
		lc.Level = "debug"
	} else if lc.Level == "" || lc.Level == "info" {
		lc.Level = "warn"
	}
	return lc.NewLogger(w)
}
