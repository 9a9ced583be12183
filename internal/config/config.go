package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"

	xdgConfigFile = "tictactoe/config.yml"
)

var ErrUnknownStorage = errors.New("unknown storage driver")

type Config struct {
	LogLevel   string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string  `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	Storage    Storage `yaml:"storage"`
	Redis      Redis   `yaml:"redis"`
	SQLite     SQLite  `yaml:"sqlite"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
}

type Redis struct {
	Host string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	TTL  time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"24h"`
}

type SQLite struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"tictactoe.db"`
}

// MustLoad - load all configurations from the config file, falling back to env and defaults.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	configPath, found := Locate(path)
	if !found {
		if err := cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("failed to read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Locate returns path when it exists, otherwise the first tictactoe/config.yml in the XDG config dirs.
func Locate(path string) (string, bool) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	xdgPath, err := xdg.SearchConfigFile(xdgConfigFile)
	if err != nil {
		return "", false
	}

	return xdgPath, true
}

func (that *Config) Validate() error {
	switch that.Storage.Driver {
	case StorageMemory, StorageRedis, StorageSQLite:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, that.Storage.Driver)
	}
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
