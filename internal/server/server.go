package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/crashchain/crashchain/internal/config"
	dashdomain "github.com/crashchain/crashchain/internal/dashboard/domain"
	leddomain "github.com/crashchain/crashchain/internal/ledger/domain"
	"github.com/crashchain/crashchain/internal/notifier"
	"github.com/crashchain/crashchain/internal/observability"
	obslogger "github.com/crashchain/crashchain/internal/observability/logger"
	obsmetrics "github.com/crashchain/crashchain/internal/observability/metrics"
	obddomain "github.com/crashchain/crashchain/internal/obdrecord/domain"
	pindomain "github.com/crashchain/crashchain/internal/pinning/domain"
	"github.com/crashchain/crashchain/internal/pipeline"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config, cfg config.Config, m *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Log:   log,
		Debug: obsCfg.Debug(),
	}))
	r.Use(obsmetrics.GinMiddleware(m))
	r.Use(CORS(cfg.AllowedOrigin))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config, cfg config.Config, m *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(log, obsCfg, cfg, m)
}

func run(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    net.JoinHostPort("", cfg.Port),
		Handler: s.Engine(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	pipelineSvc  pipeline.Service
	dashboardSvc dashdomain.Service
	pinner       pindomain.Client
	ledger       leddomain.Client
	obdSvc       obddomain.Service
	hub          *notifier.Hub
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	PipelineSvc  pipeline.Service
	DashboardSvc dashdomain.Service
	Pinner       pindomain.Client
	Ledger       leddomain.Client
	OBDSvc       obddomain.Service
	Hub          *notifier.Hub
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		pipelineSvc:  p.PipelineSvc,
		dashboardSvc: p.DashboardSvc,
		pinner:       p.Pinner,
		ledger:       p.Ledger,
		obdSvc:       p.OBDSvc,
		hub:          p.Hub,
	}

	svc.registerAPIRoutes()
	svc.registerWSRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/upload-and-process/process", s.UploadAndProcess)

	dashboard := api.Group("/dashboard")
	dashboard.GET("/data", s.DashboardData)
	dashboard.GET("/group/:groupId", s.GroupDetail)

	metadata := api.Group("/metadata")
	metadata.GET("/verify/:index", s.VerifyMetadata)
	metadata.GET("/count", s.MetadataCount)

	api.GET("/obd-records", s.ListOBDRecords)
}

func (s *Server) registerWSRoutes() {
	s.engine.GET("/ws", s.hub.Handle)
}
