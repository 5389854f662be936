package invoice

import (
	"github.com/smallbiznis/samda/internal/invoice/repository"
	"github.com/smallbiznis/samda/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewLedger),
	fx.Provide(service.NewService),
)
