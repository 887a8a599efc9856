package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	JWT     JWTConfig     `mapstructure:"jwt"`
	Storage StorageConfig `mapstructure:"storage"`
	Zip     ZipConfig     `mapstructure:"zip"`
	AppHost string        `mapstructure:"host"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ZipConfig exposes the retry knobs of the archive engine. The defaults
// were tuned against filesystems that hold file locks noticeably long;
// they are configuration, not invariants.
type ZipConfig struct {
	DeleteRetries      int `mapstructure:"delete_retries"`
	DeleteRetryDelayMS int `mapstructure:"delete_retry_delay_ms"`
	CatalogRetries     int `mapstructure:"catalog_retries"`
	CatalogBackoffMS   int `mapstructure:"catalog_backoff_ms"`
}

func Load() (*Config, error) {
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")
	viper.SetConfigName("settings")
	viper.SetConfigType("yml")

	viper.SetDefault("storage.path", "./data")
	viper.SetDefault("zip.delete_retries", 3)
	viper.SetDefault("zip.delete_retry_delay_ms", 500)
	viper.SetDefault("zip.catalog_retries", 3)
	viper.SetDefault("zip.catalog_backoff_ms", 500)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
