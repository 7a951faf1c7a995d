package recalc

import (
	"github.com/fiscalia/limits/internal/recalc/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recalc.service",
	fx.Provide(service.NewService),
)
