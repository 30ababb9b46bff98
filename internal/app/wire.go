//go:build wireinject
// +build wireinject

package app

import (
	"face-analysis/internal/config"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// New собирает приложение
func New(cfg *config.Config, logger log.Logger) (*App, func(), error) {
	panic(wire.Build(ProviderSet, newApp))
}
