package payment

import (
	"github.com/smallbiznis/samda/internal/payment/repository"
	"github.com/smallbiznis/samda/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
