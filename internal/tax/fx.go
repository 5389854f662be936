package tax

import (
	"github.com/smallbiznis/samda/internal/tax/repository"
	"github.com/smallbiznis/samda/internal/tax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewService),
)
