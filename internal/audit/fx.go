package audit

import (
	"github.com/fiscalia/limits/internal/audit/domain"
	"github.com/fiscalia/limits/internal/audit/repository"
	"github.com/fiscalia/limits/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) domain.Emitter { return s }),
)
