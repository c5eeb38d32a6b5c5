// Package server implements the HTTP status surface: a thin, versioned
// REST API over the Data-Point Manager's own read operations. It accepts
// no equipment commands; its only writes are the two operator recovery
// routes under /v1/admin (unskip and reload).
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/coophouse/iocore/docs"
	"github.com/coophouse/iocore/pkg/datapoint"
	"github.com/coophouse/iocore/pkg/log"
	"github.com/coophouse/iocore/pkg/model"
)

// Manager is the subset of *datapoint.Manager the status surface
// reads through and the two narrow recovery actions it exposes to
// operators; satisfied directly by *datapoint.Manager.
type Manager interface {
	GetPortStatuses() []datapoint.PortStatusView
	ListDataPoints() map[string]string
	Query(name string) (model.CacheEntry, error)
	UnskipSlave(ctx context.Context, portName string, slaveID int) error
	ReloadPort(ctx context.Context, path string) error
}

// Server wraps an http.Server serving the gin router built in New.
type Server struct {
	mgr     Manager
	httpSrv *http.Server
}

// New builds a Server listening on addr. logger drives request logging
// and panic recovery; gin itself runs in release mode unless logger's
// level is debug or finer. reg, when non-nil, is served at GET /metrics.
func New(mgr Manager, addr string, logger *zap.Logger, reg *prometheus.Registry) (*Server, error) {
	if addr == "" {
		return nil, errors.New("address is required")
	}
	if mgr == nil {
		return nil, errors.New("manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if logger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	installRootGinMiddlewares(router)
	installCommonGinMiddlewares(router, logger)

	s := &Server{mgr: mgr}

	router.GET("/v1/healthz", createHealthzHandler())
	router.GET("/v1/ports", s.createListPortsHandler())
	router.GET("/v1/data-points", s.createListDataPointsHandler())
	router.GET("/v1/data-points/:name", s.createGetDataPointHandler())
	router.POST("/v1/admin/ports/:name/unskip", s.createUnskipHandler())
	router.POST("/v1/admin/ports/:name/reload", s.createReloadPortHandler())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if reg != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// ListenAndServe blocks serving HTTP until ctx is canceled or Shutdown
// is called, returning nil on a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	log.Logger.Infow("status server stopped")
	return nil
}
