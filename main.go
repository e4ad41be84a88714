package main

import (
	"os"

	"github.com/edahouse/shopcore/internal/core"
	"github.com/edahouse/shopcore/internal/shop/model"
	logx "github.com/edahouse/shopcore/pkg/logger"
	pkgredis "github.com/edahouse/shopcore/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig defines all configurable parameters of the storefront client,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// Storefront
	Shop    model.ShopConfig
	Update  model.UpdateConfig
	Release model.ReleaseConfig
}

func (c AppConfig) Environment() core.Environment {
	return core.ParseEnvironment(c.Env)
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment()})

	if err := newApp(cfg).Run(os.Args); err != nil {
		logx.Fatal().Err(err).Msg("command failed")
	}
}
