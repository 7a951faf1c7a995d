package snapshot

import (
	"github.com/fiscalia/limits/internal/snapshot/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("snapshot.store",
	fx.Provide(repository.Provide),
)
