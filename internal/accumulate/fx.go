package accumulate

import (
	"github.com/fiscalia/limits/internal/accumulate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("accumulate.service",
	fx.Provide(service.NewService),
)
