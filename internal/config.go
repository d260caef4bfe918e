package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/townsquare/media_server/internal/mirror"
	"github.com/townsquare/media_server/internal/proxy"
	"github.com/townsquare/media_server/internal/storage"
)

// Config is the full static configuration of the media service. Everything
// the pipelines need is supplied here at startup; nothing is discovered at
// runtime.
type Config struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	ExternalURL    string   `mapstructure:"external_url"`
	MasterPassword string   `mapstructure:"master_password"`
	DatabaseURL    string   `mapstructure:"database_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Storage storage.Config `mapstructure:"storage"`
	Mirror  mirror.Config  `mapstructure:"mirror"`
	Proxy   proxy.Config   `mapstructure:"proxy"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile("files/config.yaml")

	// Secrets come from the environment, e.g. MEDIA_DATABASE_URL or
	// MEDIA_STORAGE_OBJECT_SECRET_KEY, and override the file.
	viper.SetEnvPrefix("MEDIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.MasterPassword == "" {
		return nil, fmt.Errorf("master_password is required")
	}
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required")
	}
	return &config, nil
}
