package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

type HeapDbConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir  string `mapstructure:"workdir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`

	Pool struct {
		Capacity      int `mapstructure:"capacity"`
		LockTimeoutMs int `mapstructure:"lock_timeout_ms"`
	} `mapstructure:"pool"`
}

func LoadConfig(path string) (*HeapDbConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg HeapDbConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
