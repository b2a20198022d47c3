package web

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/bitonicnl/fireworks/internal/core/application"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type Config struct {
	HTTPPort uint32
}

func (c Config) Validate() error {
	lis, err := net.Listen("tcp", c.address())
	if err != nil {
		return fmt.Errorf("invalid http port: %s", err)
	}
	// nolint:all
	lis.Close()
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

type service struct {
	*gin.Engine

	cfg    Config
	svc    *application.Service
	server *http.Server
}

func NewService(cfg Config, appSvc *application.Service) (*service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}

	svc := newService(appSvc)
	svc.cfg = cfg
	svc.server = &http.Server{
		Addr:    cfg.address(),
		Handler: svc.Engine,
	}
	return svc, nil
}

func newService(appSvc *application.Service) *service {
	router := gin.New()
	setupMiddleware(router)

	svc := &service{Engine: router, svc: appSvc}

	api := svc.Group("/api")
	api.GET("/info", svc.getInfoApi)
	api.GET("/funds", svc.getFundsApi)
	api.GET("/channels", svc.getChannelsApi)
	api.GET("/peers", svc.getPeersApi)
	api.GET("/invoices", svc.getInvoicesApi)
	api.GET("/payments", svc.getPaymentsApi)
	api.GET("/snapshot", svc.getSnapshotApi)
	api.GET("/events", svc.eventsApi)

	api.POST("/invoices", svc.newInvoiceApi)
	api.POST("/decode", svc.decodeApi)
	api.POST("/pay", svc.payApi)
	api.POST("/peers", svc.connectApi)
	api.POST("/channels", svc.openChannelApi)
	api.DELETE("/channels/:id", svc.closeChannelApi)
	api.POST("/command", svc.commandApi)

	return svc
}

func (s *service) Start() error {
	// nolint:all
	go s.server.ListenAndServe()
	log.Infof("started listening at %s", s.cfg.address())
	return nil
}

func (s *service) Stop() {
	// nolint:all
	s.server.Shutdown(context.Background())
	log.Info("stopped http server")
}
