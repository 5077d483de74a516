package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var Version = "dev"

const (
	EnvPrefix             = "SHELLYPG"
	DefaultRetryInterval  = 10 * time.Second
	DefaultKeepAlive      = 30 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultMetricsAddr    = ":9100"
	DefaultLogLevel       = "info"
)

// Config holds application-wide configuration
type Config struct {
	// Env is read from the process environment only and has no defaults.
	Env      Env           `mapstructure:"-"`
	LogLevel string        `mapstructure:"logLevel"`
	Bridge   BridgeConfig  `mapstructure:"bridge"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
}

// Env holds the connection settings every deployment must provide.
type Env struct {
	MQTT MQTTEnv
	PG   PGEnv
}

type MQTTEnv struct {
	Broker   string `env:"MQTT_BROKER,required,notEmpty"`
	Port     int    `env:"MQTT_PORT,required,notEmpty"`
	Username string `env:"MQTT_USERNAME,required"`
	Password string `env:"MQTT_PASSWORD,required"`
}

type PGEnv struct {
	Host     string `env:"PG_HOST,required,notEmpty"`
	Database string `env:"PG_DATABASE,required,notEmpty"`
	User     string `env:"PG_USER,required"`
	Password string `env:"PG_PASSWORD,required"`
}

type BridgeConfig struct {
	RetryInterval  time.Duration `mapstructure:"retryInterval"`
	ClientID       string        `mapstructure:"clientID"`
	QoS            byte          `mapstructure:"qos"`
	KeepAlive      time.Duration `mapstructure:"keepAlive"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ConnString returns the PostgreSQL URL for the configured database.
func (p PGEnv) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Host,
		Path:   "/" + p.Database,
	}
	return u.String()
}

// LoadEnv reads the required connection settings from the process
// environment. Every variable must be set; MQTT_PORT must be an integer.
func LoadEnv() (Env, error) {
	return LoadEnvFrom(nil)
}

// LoadEnvFrom is LoadEnv over the given variables instead of the process
// environment. A nil map reads the process environment.
func LoadEnvFrom(environ map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return Env{}, fmt.Errorf("config error: %w", err)
	}
	return e, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", DefaultLogLevel)
	v.SetDefault("bridge.retryInterval", DefaultRetryInterval)
	v.SetDefault("bridge.clientID", "")
	v.SetDefault("bridge.qos", 0)
	v.SetDefault("bridge.keepAlive", DefaultKeepAlive)
	v.SetDefault("bridge.connectTimeout", DefaultConnectTimeout)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", DefaultMetricsAddr)
}

// Load reads tunables from the config file, SHELLYPG_* variables and flags
// bound to v, then the required connection settings from the environment.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("shellypg")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Bridge.RetryInterval <= 0 {
		return nil, fmt.Errorf("bridge.retryInterval must be positive, got %s", cfg.Bridge.RetryInterval)
	}
	if cfg.Bridge.QoS > 2 {
		return nil, fmt.Errorf("bridge.qos must be 0, 1 or 2, got %d", cfg.Bridge.QoS)
	}
	if cfg.Bridge.ClientID == "" {
		cfg.Bridge.ClientID = "shellypg-" + uuid.NewString()[:8]
	}

	e, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	cfg.Env = e

	return &cfg, nil
}
