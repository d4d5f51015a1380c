package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AccountConfig holds the aggregating identity and its server endpoints.
type AccountConfig struct {
	// Email is the aggregating address all provider mailboxes forward to.
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"password"`

	IMAPHost    string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort    string `mapstructure:"imap_port" yaml:"imap_port"`
	IMAPMailbox string `mapstructure:"imap_mailbox" yaml:"imap_mailbox"`

	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
}

// FetchConfig controls the remote sync window.
type FetchConfig struct {
	Range      FetchRange `mapstructure:"range" yaml:"range"`
	CustomDays int        `mapstructure:"custom_days" yaml:"custom_days"`
}

// AppConfig is the top-level configuration passed explicitly into engine
// calls; there is no process-wide singleton.
type AppConfig struct {
	Account    AccountConfig `mapstructure:"account" yaml:"account"`
	Fetch      FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	DeleteMode DeleteMode    `mapstructure:"delete_mode" yaml:"delete_mode"`
	DBPath     string        `mapstructure:"db_path" yaml:"db_path"`
}

// Validate reports the missing required fields before any network attempt.
func (c *AppConfig) Validate() error {
	if c.Account.Email == "" {
		return fmt.Errorf("account email is not configured")
	}
	if c.Account.Password == "" {
		return fmt.Errorf("account password is not configured")
	}
	if c.Account.IMAPHost == "" {
		return fmt.Errorf("imap host is not configured")
	}
	return nil
}

// DefaultConfigPath returns ~/.config/mailhub/config.yaml, honoring the
// MAILHUB_CONFIG_DIR override.
func DefaultConfigPath() string {
	if dir := os.Getenv("MAILHUB_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailhub", "config.yaml")
}

// DefaultDBPath returns the storage location for the local message store,
// honoring the MAILHUB_STORAGE_DIR override.
func DefaultDBPath() string {
	if dir := os.Getenv("MAILHUB_STORAGE_DIR"); dir != "" {
		return filepath.Join(dir, "mailhub.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mailhub.db")
	}
	return filepath.Join(home, ".local", "share", "mailhub", "mailhub.db")
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{
			IMAPHost:    "imap.gmail.com",
			IMAPPort:    "993",
			IMAPMailbox: "INBOX",
			SMTPHost:    "smtp.gmail.com",
			SMTPPort:    "587",
		},
		Fetch:      FetchConfig{Range: FetchLatest, CustomDays: 30},
		DeleteMode: DeleteLocalOnly,
		DBPath:     DefaultDBPath(),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file yields the default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("account.imap_host", "imap.gmail.com")
	v.SetDefault("account.imap_port", "993")
	v.SetDefault("account.imap_mailbox", "INBOX")
	v.SetDefault("account.smtp_host", "smtp.gmail.com")
	v.SetDefault("account.smtp_port", "587")
	v.SetDefault("fetch.range", string(FetchLatest))
	v.SetDefault("fetch.custom_days", 30)
	v.SetDefault("delete_mode", string(DeleteLocalOnly))
	v.SetDefault("db_path", DefaultDBPath())

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

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file at path, creating
// parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("fetch", cfg.Fetch)
	v.Set("delete_mode", cfg.DeleteMode)
	v.Set("db_path", cfg.DBPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
