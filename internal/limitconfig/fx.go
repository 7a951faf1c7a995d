package limitconfig

import (
	"github.com/fiscalia/limits/internal/limitconfig/repository"
	"github.com/fiscalia/limits/internal/limitconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("limitconfig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
