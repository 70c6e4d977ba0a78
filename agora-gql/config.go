package agoragql

import (
	"os"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	"github.com/rs/zerolog"
)

type BaseConfig struct {
	Logger  zerolog.Logger
	Service agoracli.Service
}

func NewConfig(service agoracli.Service) BaseConfig {
	return BaseConfig{
		Logger: zerolog.New(os.Stdout).With().
			Str("service", service.Name).
			Str("version", service.Version).
			Logger(),
		Service: service,
	}
}
