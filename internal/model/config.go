package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// IMAPConfig holds the settings for the remote mailbox connection.
type IMAPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	// TLS selects implicit TLS; when false, STARTTLS is used.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// SMTPConfig holds the settings for the outbound mail relay.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	TLS  bool   `mapstructure:"tls" yaml:"tls"`
}

// AccountConfig identifies the mirrored account. The app password is
// not kept here; it lives in the system keyring under Address.
type AccountConfig struct {
	Address string     `mapstructure:"address" yaml:"address"`
	IMAP    IMAPConfig `mapstructure:"imap" yaml:"imap"`
	SMTP    SMTPConfig `mapstructure:"smtp" yaml:"smtp"`
}

// SyncConfig controls the inbox refresh behavior.
type SyncConfig struct {
	// WindowSize is the number of most recent messages fetched per run.
	WindowSize int `mapstructure:"window_size" yaml:"window_size"`

	// TimeoutSec bounds one full fetch-and-persist run.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// StorageConfig locates the local message store.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account AccountConfig `mapstructure:"account" yaml:"account"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/mailbox/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailbox", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	return &AppConfig{
		Account: AccountConfig{
			IMAP: IMAPConfig{Host: "imap.gmail.com", Port: "993", TLS: true},
			SMTP: SMTPConfig{Host: "smtp.gmail.com", Port: "587", TLS: false},
		},
		Storage: StorageConfig{
			Path: filepath.Join(home, ".config", "mailbox", "mailbox.db"),
		},
		Sync: SyncConfig{
			WindowSize: 20,
			TimeoutSec: 30,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default
// configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("account.imap.host", "imap.gmail.com")
	v.SetDefault("account.imap.port", "993")
	v.SetDefault("account.imap.tls", true)
	v.SetDefault("account.smtp.host", "smtp.gmail.com")
	v.SetDefault("account.smtp.port", "587")
	v.SetDefault("sync.window_size", 20)
	v.SetDefault("sync.timeout_sec", 30)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.WindowSize <= 0 {
		cfg.Sync.WindowSize = 20
	}
	if cfg.Sync.TimeoutSec <= 0 {
		cfg.Sync.TimeoutSec = 30
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("storage", cfg.Storage)
	v.Set("sync", cfg.Sync)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
