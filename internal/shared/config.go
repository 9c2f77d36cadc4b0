package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/yandex"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Source      SourceConfig      `toml:"source"`
	Destination DestinationConfig `toml:"destination"`
	Upload      UploadConfig      `toml:"upload"`
	Sync        SyncConfig        `toml:"sync"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
}

// SourceConfig controls playlist extraction and audio fetching through yt-dlp.
type SourceConfig struct {
	PlaylistURL   string   `toml:"playlist_url"`
	YTDLPPath     string   `toml:"ytdlp_path"`
	Format        string   `toml:"format"`
	Extension     string   `toml:"extension"`
	OutputDir     string   `toml:"output_dir"`
	FetchAttempts int      `toml:"fetch_attempts"`
	RetryDelay    Duration `toml:"retry_delay"`
}

// DestinationConfig contains the Yandex Music credential and endpoints.
type DestinationConfig struct {
	Token             string  `toml:"token"`
	PlaylistName      string  `toml:"playlist_name"`
	APIURL            string  `toml:"api_url"`
	UploadURL         string  `toml:"upload_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	RedirectURI       string  `toml:"redirect_uri"`
}

// OAuthConfig returns the authorization-code flow configuration used by "auth login".
func (d DestinationConfig) OAuthConfig() (*oauth2.Config, error) {
	if d.ClientID == "" || d.ClientSecret == "" {
		return nil, fmt.Errorf("%w: destination.client_id and destination.client_secret must be set", ErrMissingCredentials)
	}
	return &oauth2.Config{
		ClientID:     d.ClientID,
		ClientSecret: d.ClientSecret,
		RedirectURL:  d.RedirectURI,
		Endpoint:     yandex.Endpoint,
	}, nil
}

// UploadConfig is the retry and timeout policy of the upload channel.
type UploadConfig struct {
	Timeout            Duration `toml:"timeout"`
	RetryMax           int      `toml:"retry_max"`
	BackoffFactor      Duration `toml:"backoff_factor"`
	RetryStatuses      []int    `toml:"retry_statuses"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

// SyncConfig contains orchestrator settings.
type SyncConfig struct {
	LogPath        string `toml:"log_path"`
	Skip           int    `toml:"skip"`
	Count          int    `toml:"count"`
	InsertAttempts int    `toml:"insert_attempts"`
	KeepFiles      bool   `toml:"keep_files"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains diagnostic logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from TOML strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks the numeric settings that the pipeline relies on.
func (c *Config) Validate() error {
	switch {
	case c.Upload.Timeout.Duration <= 0:
		return fmt.Errorf("%w: upload.timeout must be positive", ErrInvalidConfig)
	case c.Upload.RetryMax < 0:
		return fmt.Errorf("%w: upload.retry_max must not be negative", ErrInvalidConfig)
	case c.Source.FetchAttempts < 1:
		return fmt.Errorf("%w: source.fetch_attempts must be at least 1", ErrInvalidConfig)
	case c.Sync.InsertAttempts < 1:
		return fmt.Errorf("%w: sync.insert_attempts must be at least 1", ErrInvalidConfig)
	case c.Sync.Skip < 0 || c.Sync.Count < 0:
		return fmt.Errorf("%w: sync.skip and sync.count must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SaveConfig writes config to path as TOML, replacing the file.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
