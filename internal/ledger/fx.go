package ledger

import (
	"github.com/fiscalia/limits/internal/ledger/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideAppender),
)
