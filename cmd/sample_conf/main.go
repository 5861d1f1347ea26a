package main

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/internal/config"
	"github.com/LeoCommon/tracker/pkg/file"
	"github.com/LeoCommon/tracker/pkg/log"
)

// Writes the default configuration, every key commented with its meaning
func main() {
	out := pflag.StringP("out", "o", "./config/config.toml", "where to write the sample config")
	pflag.Parse()

	log.Init(true)

	defaultConfigBytes, err := toml.Marshal(config.Default())
	if err != nil {
		log.Fatal("Failed to marshal the default config", zap.Error(err))
	}

	if err := file.WriteAtomic(*out, defaultConfigBytes, 0644); err != nil {
		log.Error("Failed to write config file", zap.Error(err))
		os.Exit(1)
	}

	log.Info("sample config written", zap.String("path", *out))
}
