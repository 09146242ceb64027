package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vbrief configuration",
	Long:  "View and modify vbrief settings",
}

// vbrief config show
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		label := color.New(color.Faint)
		fmt.Println("Current configuration:")
		for _, k := range settings {
			label.Printf("  %-32s", k.name)
			fmt.Println(displayValue(cfg, k))
		}
		label.Printf("\n  %-32s", "config file")
		fmt.Println(config.SavePath())
		return nil
	},
}

// vbrief config path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

// vbrief config set KEY [VALUE]
var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Secret keys (provider.api_key, transcription.api_key, server.api_key) are
prompted for without echo when the value is omitted.

Supported keys:
` + keyList() + `
Examples:
  vbrief config set provider.name anthropic
  vbrief config set provider.api_key
  vbrief config set limits.max_duration_seconds 3600`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		s, ok := lookupSetting(key)
		if !ok {
			return fmt.Errorf("unknown config key: %s\nRun 'vbrief config set --help' to see supported keys", key)
		}

		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			if !s.secret {
				return fmt.Errorf("missing value for %s", key)
			}
			v, err := readSecret(key)
			if err != nil {
				return err
			}
			value = v
		}

		cfg := loadSavedConfig()
		if err := s.set(cfg, value); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		if s.secret {
			value = maskSecret(value)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

// vbrief config get KEY
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, ok := lookupSetting(args[0])
		if !ok {
			return fmt.Errorf("unknown config key: %s\nRun 'vbrief config set --help' to see supported keys", args[0])
		}
		fmt.Println(s.get(loadSavedConfig()))
		return nil
	},
}

// vbrief config unset KEY
var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, ok := lookupSetting(args[0])
		if !ok {
			return fmt.Errorf("unknown config key: %s", args[0])
		}

		cfg := loadSavedConfig()
		if err := s.set(cfg, s.get(config.DefaultConfig())); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Unset %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

// loadSavedConfig reads the file without environment overrides so that
// set/unset never persist values that came from the environment.
func loadSavedConfig() *config.Config {
	if configFile != "" {
		if cfg, err := config.LoadFile(configFile); err == nil {
			return cfg
		}
		return config.DefaultConfig()
	}
	cfg, err := config.Load()
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

func readSecret(key string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("missing value for %s", key)
	}
	fmt.Fprintf(os.Stderr, "%s: ", key)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func maskSecret(v string) string {
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return v[:4] + "..." + v[len(v)-4:]
}

// displayValue is a setting's value as shown by config show: secrets are
// masked and an unset model shows the provider's default.
func displayValue(cfg *config.Config, k setting) string {
	value := k.get(cfg)
	switch {
	case k.secret && value != "":
		return maskSecret(value)
	case k.name == "provider.model" && value == "":
		return summarizer.DefaultModel(cfg.Provider.Name) + " (default)"
	}
	return value
}

type setting struct {
	name   string
	secret bool
	get    func(*config.Config) string
	set    func(*config.Config, string) error
}

func stringSetting(name string, secret bool, field func(*config.Config) *string) setting {
	return setting{
		name:   name,
		secret: secret,
		get:    func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func intSetting(name string, field func(*config.Config) *int) setting {
	return setting{
		name: name,
		get:  func(c *config.Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid number for %s: %s", name, v)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolSetting(name string, field func(*config.Config) *bool) setting {
	return setting{
		name: name,
		get:  func(c *config.Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean for %s: %s", name, v)
			}
			*field(c) = b
			return nil
		},
	}
}

var settings = []setting{
	stringSetting("provider.name", false, func(c *config.Config) *string { return &c.Provider.Name }),
	stringSetting("provider.api_key", true, func(c *config.Config) *string { return &c.Provider.APIKey }),
	stringSetting("provider.model", false, func(c *config.Config) *string { return &c.Provider.Model }),
	stringSetting("provider.base_url", false, func(c *config.Config) *string { return &c.Provider.BaseURL }),
	stringSetting("transcription.engine", false, func(c *config.Config) *string { return &c.Transcription.Engine }),
	stringSetting("transcription.model", false, func(c *config.Config) *string { return &c.Transcription.Model }),
	stringSetting("transcription.language", false, func(c *config.Config) *string { return &c.Transcription.Language }),
	stringSetting("transcription.api_key", true, func(c *config.Config) *string { return &c.Transcription.APIKey }),
	stringSetting("transcription.timeout", false, func(c *config.Config) *string { return &c.Transcription.Timeout }),
	stringSetting("transcription.ytdlp", false, func(c *config.Config) *string { return &c.Transcription.YtDlp }),
	stringSetting("captions.language", false, func(c *config.Config) *string { return &c.Captions.Language }),
	intSetting("limits.max_duration_seconds", func(c *config.Config) *int { return &c.Limits.MaxDurationSeconds }),
	intSetting("limits.max_follow_ups", func(c *config.Config) *int { return &c.Limits.MaxFollowUps }),
	intSetting("limits.min_text_chars", func(c *config.Config) *int { return &c.Limits.MinTextChars }),
	intSetting("cache.max_entries", func(c *config.Config) *int { return &c.Cache.MaxEntries }),
	intSetting("cache.max_summaries", func(c *config.Config) *int { return &c.Cache.MaxSummaries }),
	stringSetting("fetch.timeout", false, func(c *config.Config) *string { return &c.Fetch.Timeout }),
	boolSetting("fetch.browser_fallback", func(c *config.Config) *bool { return &c.Fetch.BrowserFallback }),
	intSetting("server.port", func(c *config.Config) *int { return &c.Server.Port }),
	intSetting("server.max_concurrent", func(c *config.Config) *int { return &c.Server.MaxConcurrent }),
	intSetting("server.max_sessions", func(c *config.Config) *int { return &c.Server.MaxSessions }),
	stringSetting("server.api_key", true, func(c *config.Config) *string { return &c.Server.APIKey }),
	stringSetting("log.level", false, func(c *config.Config) *string { return &c.Log.Level }),
	stringSetting("log.format", false, func(c *config.Config) *string { return &c.Log.Format }),
}

var configKeys = func() []string {
	keys := make([]string, len(settings))
	for i, s := range settings {
		keys[i] = s.name
	}
	return keys
}()

func lookupSetting(name string) (setting, bool) {
	for _, s := range settings {
		if s.name == name {
			return s, true
		}
	}
	return setting{}, false
}

func keyList() string {
	var b strings.Builder
	for _, s := range settings {
		fmt.Fprintf(&b, "  %s\n", s.name)
	}
	return b.String()
}
