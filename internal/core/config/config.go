package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "vbrief"
)

// Defaults shared by the config layer and the packages that consume it.
const (
	DefaultPort               = 8080
	DefaultProvider           = "openai"
	DefaultMaxDuration        = 1800 // seconds
	DefaultMaxFollowUps       = 3
	DefaultMinTextChars       = 50
	DefaultMinRawTextChars    = 20
	DefaultMinAudioBytes      = 16 * 1024
	DefaultCacheEntries       = 32
	DefaultSummaryCache       = 100
	DefaultLanguage           = "en"
	DefaultFetchTimeout       = 15 * time.Second
	DefaultTranscribeTimeout  = 30 * time.Minute
	DefaultUserAgent          = "Mozilla/5.0 (compatible; SummarizBot/1.0)"
	DefaultTranscriptionModel = "whisper-base"
)

// ConfigDir returns the standard config directory for vbrief.
// Windows: %APPDATA%\vbrief\
// macOS/Linux: ~/.config/vbrief/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/vbrief/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	Server        ServerConfig        `yaml:"server,omitempty"`
	Provider      ProviderConfig      `yaml:"provider,omitempty"`
	Transcription TranscriptionConfig `yaml:"transcription,omitempty"`
	Captions      CaptionsConfig      `yaml:"captions,omitempty"`
	Limits        LimitsConfig        `yaml:"limits,omitempty"`
	Cache         CacheConfig         `yaml:"cache,omitempty"`
	Fetch         FetchConfig         `yaml:"fetch,omitempty"`
	Log           LogConfig           `yaml:"log,omitempty"`
}

// ServerConfig holds HTTP server settings for `vbrief serve`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8080)
	Port int `yaml:"port,omitempty"`

	// MaxConcurrent is the number of async summarization workers (default: 1)
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// APIKey for authentication (optional, if set all requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`

	// MaxSessions bounds the in-memory follow-up session registry
	MaxSessions int `yaml:"max_sessions,omitempty"`
}

// ProviderConfig selects the LLM used for summaries and follow-up answers.
type ProviderConfig struct {
	// Name is one of openai, anthropic, qwen, gemini
	Name    string `yaml:"name,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// TranscriptionConfig configures the speech-to-text fallback.
type TranscriptionConfig struct {
	// Engine is local (whisper.cpp), openai (Whisper API) or none
	Engine    string `yaml:"engine,omitempty"`
	Model     string `yaml:"model,omitempty"`
	ModelsDir string `yaml:"models_dir,omitempty"`
	// Binary is the whisper-cli path used by non-cgo builds
	Binary string `yaml:"binary,omitempty"`
	// Language is an ISO 639-1 code or "auto"
	Language string `yaml:"language,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	// Timeout bounds a single transcription, e.g. "30m"
	Timeout string `yaml:"timeout,omitempty"`
	// YtDlp is the yt-dlp binary used for probing and audio download
	YtDlp string `yaml:"ytdlp,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to the default.
func (t TranscriptionConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(t.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultTranscribeTimeout
}

type CaptionsConfig struct {
	Language string `yaml:"language,omitempty"`
}

// LimitsConfig holds the thresholds that gate extraction and follow-ups.
type LimitsConfig struct {
	MaxDurationSeconds int   `yaml:"max_duration_seconds,omitempty"`
	MaxFollowUps       int   `yaml:"max_follow_ups,omitempty"`
	MinTextChars       int   `yaml:"min_text_chars,omitempty"`
	MinRawTextChars    int   `yaml:"min_raw_text_chars,omitempty"`
	MinAudioBytes      int64 `yaml:"min_audio_bytes,omitempty"`
}

type CacheConfig struct {
	// MaxEntries bounds the transcript cache; 0 disables it
	MaxEntries int `yaml:"max_entries"`
	// MaxSummaries bounds the summary cache; 0 disables it
	MaxSummaries int `yaml:"max_summaries"`
}

// FetchConfig configures webpage retrieval.
type FetchConfig struct {
	Timeout   string `yaml:"timeout,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
	// BrowserFallback re-renders thin pages in headless Chrome
	BrowserFallback bool `yaml:"browser_fallback,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to the default.
func (f FetchConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(f.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultFetchTimeout
}

type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level,omitempty"`
	// Format is text or json
	Format string `yaml:"format,omitempty"`
}

// DefaultModelsDir returns where whisper models are stored.
// In Docker, /home/vbrief/models; on host systems, ~/.config/vbrief/models.
func DefaultModelsDir() string {
	if IsRunningInDocker() {
		return "/home/vbrief/models"
	}
	dir, err := ConfigDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(dir, "models")
}

// IsRunningInDocker detects if we're running inside a Docker container
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          DefaultPort,
			MaxConcurrent: 1,
			MaxSessions:   256,
		},
		Provider: ProviderConfig{
			Name: DefaultProvider,
		},
		Transcription: TranscriptionConfig{
			Engine:    "local",
			Model:     DefaultTranscriptionModel,
			ModelsDir: DefaultModelsDir(),
			Language:  DefaultLanguage,
			Timeout:   DefaultTranscribeTimeout.String(),
		},
		Captions: CaptionsConfig{
			Language: DefaultLanguage,
		},
		Limits: LimitsConfig{
			MaxDurationSeconds: DefaultMaxDuration,
			MaxFollowUps:       DefaultMaxFollowUps,
			MinTextChars:       DefaultMinTextChars,
			MinRawTextChars:    DefaultMinRawTextChars,
			MinAudioBytes:      DefaultMinAudioBytes,
		},
		Cache: CacheConfig{
			MaxEntries:   DefaultCacheEntries,
			MaxSummaries: DefaultSummaryCache,
		},
		Fetch: FetchConfig{
			Timeout:   DefaultFetchTimeout.String(),
			UserAgent: DefaultUserAgent,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/vbrief/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a config file, layering it over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.Transcription.ModelsDir = expandPath(cfg.Transcription.ModelsDir)
	cfg.Transcription.Binary = expandPath(cfg.Transcription.Binary)

	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// Both separators are accepted so "~\models" works on every platform.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// ApplyEnv overrides config values from the environment. Provider-specific
// key variables are consulted only when no generic key is set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv("VBRIEF_PROVIDER"); v != "" {
		c.Provider.Name = strings.ToLower(v)
	}
	if v := getenv("VBRIEF_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if c.Provider.APIKey == "" {
		if env := providerKeyEnv[c.Provider.Name]; env != "" {
			c.Provider.APIKey = getenv(env)
		}
	}
	if c.Transcription.APIKey == "" && c.Transcription.Engine == "openai" {
		c.Transcription.APIKey = getenv("OPENAI_API_KEY")
	}
	if v := getenv("VBRIEF_WHISPER_MODEL"); v != "" {
		c.Transcription.Model = v
	}
	if v := getenv("VBRIEF_MAX_DURATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.MaxDurationSeconds = n
		}
	}
	if v := getenv("VBRIEF_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
}

var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"qwen":      "DASHSCOPE_API_KEY",
}

// Providers lists the accepted provider names.
var Providers = []string{"openai", "anthropic", "qwen", "gemini"}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, ok := providerKeyEnv[c.Provider.Name]; !ok {
		errs = append(errs, fmt.Errorf("provider.name %q must be one of %s",
			c.Provider.Name, strings.Join(Providers, ", ")))
	}
	switch c.Transcription.Engine {
	case "", "local", "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("transcription.engine %q must be local, openai or none", c.Transcription.Engine))
	}
	if c.Transcription.Timeout != "" {
		if _, err := time.ParseDuration(c.Transcription.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("transcription.timeout: %w", err))
		}
	}
	if c.Fetch.Timeout != "" {
		if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("fetch.timeout: %w", err))
		}
	}
	if c.Limits.MaxDurationSeconds <= 0 {
		errs = append(errs, errors.New("limits.max_duration_seconds must be positive"))
	}
	if c.Limits.MaxFollowUps < 0 {
		errs = append(errs, errors.New("limits.max_follow_ups must not be negative"))
	}
	if c.Limits.MinTextChars < 0 || c.Limits.MinRawTextChars < 0 || c.Limits.MinAudioBytes < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxSummaries < 0 {
		errs = append(errs, errors.New("cache sizes must not be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not a level", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Save writes the config to ~/.config/vbrief/config.yml
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveFile(configPath, cfg)
}

// SaveFile writes cfg to path, creating parent directories.
func SaveFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# vbrief configuration file\n# Run 'vbrief init' to regenerate with defaults\n\n"
	content := header + string(data)

	// may hold API keys
	return os.WriteFile(path, []byte(content), 0600)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return "config.yml"
}

// LoadOrDefault loads config if it exists, otherwise returns defaults.
// Environment overrides are applied either way.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg
}
