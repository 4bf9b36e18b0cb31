package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// MaxBoardSizeLimit is the largest board an SGF record can describe.
const MaxBoardSizeLimit = 52

type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	RedisUrl     string `mapstructure:"REDIS_URL"`
	RecordKey    string `mapstructure:"RECORD_KEY"`
	BoardSize    int    `mapstructure:"BOARD_SIZE"`
	MaxBoardSize int    `mapstructure:"MAX_BOARD_SIZE"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	Development  bool   `mapstructure:"DEVELOPMENT"`
}

var defaults = map[string]any{
	"SERVER_PORT":    "8080",
	"REDIS_URL":      "",
	"RECORD_KEY":     "goban:record",
	"BOARD_SIZE":     19,
	"MAX_BOARD_SIZE": MaxBoardSizeLimit,
	"LOG_LEVEL":      "info",
	"DEVELOPMENT":    false,
}

// flag name -> config key
var flagKeys = map[string]string{
	"port":       "SERVER_PORT",
	"redis":      "REDIS_URL",
	"board-size": "BOARD_SIZE",
	"log-level":  "LOG_LEVEL",
}

// Setup reads cfgPath if it exists, then environment variables, then any flags
// the caller defined. A missing file is not an error.
func Setup(cfgPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgPath, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxBoardSize <= 0 || c.MaxBoardSize > MaxBoardSizeLimit {
		return fmt.Errorf("MAX_BOARD_SIZE must be in 1..%d, got %d", MaxBoardSizeLimit, c.MaxBoardSize)
	}
	if c.BoardSize <= 0 || c.BoardSize > c.MaxBoardSize {
		return fmt.Errorf("BOARD_SIZE must be in 1..%d, got %d", c.MaxBoardSize, c.BoardSize)
	}
	return nil
}
