package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel          string `yaml:"log-level" env-default:"info"`
	HTTPPort          string `yaml:"http-port" env-default:"9090"`
	SocketPort        string `yaml:"socket-port" env-default:"8080"`
	Redis             Redis  `yaml:"redis"`
	SQLiteStoragePath string `yaml:"sqlite-storage-path" env-default:"gameroom.db"`
	Game              Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

type Game struct {
	MoveTimeoutSeconds      int `yaml:"move-timeout-seconds" env-default:"30"`
	RuleCheckAttempts       int `yaml:"rule-check-attempts" env-default:"3"`
	RuleCheckTimeoutSeconds int `yaml:"rule-check-timeout-seconds" env-default:"5"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Game) MoveTimeout() time.Duration {
	return time.Duration(that.MoveTimeoutSeconds) * time.Second
}

func (that *Game) RuleCheckTimeout() time.Duration {
	return time.Duration(that.RuleCheckTimeoutSeconds) * time.Second
}
