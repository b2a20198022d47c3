package service_interface

import (
	"github.com/bitonicnl/fireworks/internal/core/application"
	"github.com/bitonicnl/fireworks/internal/interface/web"
)

type Service interface {
	Start() error
	Stop()
}

func NewService(cfg web.Config, appSvc *application.Service) (Service, error) {
	return web.NewService(cfg, appSvc)
}
