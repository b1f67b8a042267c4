package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	View    ViewConfig    `mapstructure:"view"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SessionConfig holds session container settings.
type SessionConfig struct {
	CookieName          string        `mapstructure:"cookie_name"`
	MaxInactiveInterval time.Duration `mapstructure:"max_inactive_interval"`
	ReaperInterval      time.Duration `mapstructure:"reaper_interval"`
}

// ViewConfig holds view state settings.
type ViewConfig struct {
	// NumberOfViews bounds the logical views kept per session.
	NumberOfViews int    `mapstructure:"number_of_views"`
	StateParam    string `mapstructure:"state_param"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
	Color bool   `mapstructure:"color"`
}

// EnvPrefix is the prefix of environment overrides, e.g. FACES_SERVER_ADDR.
const EnvPrefix = "FACES"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("session.cookie_name", "FACESSESSIONID")
	v.SetDefault("session.max_inactive_interval", "30m")
	v.SetDefault("session.reaper_interval", "1m")
	v.SetDefault("view.number_of_views", 15)
	v.SetDefault("view.state_param", "faces-view")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.color", true)
}

// Default returns the configuration with no file and no environment applied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// Defaults always decode.
	_ = v.Unmarshal(&c)
	return c
}

// Load reads configuration from path (if non-empty) and env. The file type
// follows the extension. Env var overrides use prefix FACES_.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects values the runtime cannot work with.
func (c Config) Validate() error {
	if c.View.NumberOfViews < 1 {
		return fmt.Errorf("view.number_of_views must be positive, got %d", c.View.NumberOfViews)
	}
	if c.Session.MaxInactiveInterval <= 0 {
		return fmt.Errorf("session.max_inactive_interval must be positive, got %s", c.Session.MaxInactiveInterval)
	}
	if c.Session.ReaperInterval <= 0 {
		return fmt.Errorf("session.reaper_interval must be positive, got %s", c.Session.ReaperInterval)
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name must not be empty")
	}
	if c.View.StateParam == "" {
		return fmt.Errorf("view.state_param must not be empty")
	}
	return nil
}
