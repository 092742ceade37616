// Package config reads runtime settings from the environment.
package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	// ChunkSize is the transfer granularity in bytes.
	ChunkSize int `env:"MTPKIT_CHUNK_SIZE" env-default:"262144"`
	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string `env:"MTPKIT_LOG_LEVEL" env-default:"info"`
	// GVFSRoot overrides the gvfs mount directory on Linux. Empty picks the
	// per-user default.
	GVFSRoot string `env:"MTPKIT_GVFS_ROOT" env-default:""`
}

func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
