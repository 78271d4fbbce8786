package httpservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/arkade-os/depositd/internal/core/application"
	interfaces "github.com/arkade-os/depositd/internal/interface"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type service struct {
	config Config
	appSvc application.Service
	server *http.Server
}

func NewService(config Config, appSvc application.Service) (interfaces.Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if appSvc == nil {
		return nil, fmt.Errorf("missing app service")
	}

	router := NewHandler(appSvc, config.MetricsHandler, config.maxSnapshotSize())
	server := &http.Server{
		Addr:              config.address(),
		Handler:           router,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	return &service{config, appSvc, server}, nil
}

func (s *service) Start() error {
	if err := s.appSvc.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start app service: %w", err)
	}
	log.Info("started app service")

	go func() {
		if err := s.server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped unexpectedly")
		}
	}()
	log.Infof("started listening at %s", s.config.address())
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.shutdownTimeout())
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully shutdown http server")
		_ = s.server.Close()
	}
	s.appSvc.Stop()
	log.Info("shutdown service")
}
