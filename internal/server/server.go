package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accumulatedomain "github.com/fiscalia/limits/internal/accumulate/domain"
	auditdomain "github.com/fiscalia/limits/internal/audit/domain"
	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/config"
	configdomain "github.com/fiscalia/limits/internal/limitconfig/domain"
	recalcdomain "github.com/fiscalia/limits/internal/recalc/domain"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Config        config.Config
	Clock         clock.Clock
	Engine        *gin.Engine
	AccumulateSvc accumulatedomain.Service
	RecalcSvc     recalcdomain.Service
	ConfigSvc     configdomain.Service
	AuditSvc      auditdomain.Service
	Snapshots     snapshotdomain.Repository
}

type Server struct {
	log           *zap.Logger
	cfg           config.Config
	clock         clock.Clock
	engine        *gin.Engine
	accumulatesvc accumulatedomain.Service
	recalcsvc     recalcdomain.Service
	configsvc     configdomain.Service
	auditsvc      auditdomain.Service
	snapshots     snapshotdomain.Repository
}

func NewEngine(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func NewServer(p Params) *Server {
	s := &Server{
		log:           p.Log.Named("server"),
		cfg:           p.Config,
		clock:         p.Clock,
		engine:        p.Engine,
		accumulatesvc: p.AccumulateSvc,
		recalcsvc:     p.RecalcSvc,
		configsvc:     p.ConfigSvc,
		auditsvc:      p.AuditSvc,
		snapshots:     p.Snapshots,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	limits := s.engine.Group("/limits")
	{
		limits.POST("/accumulate", s.Accumulate)
		limits.POST("/recalculate", s.Recalculate)
		limits.GET("/:tenant_id/:year/:month", s.GetSnapshot)
		limits.GET("/:tenant_id/:year", s.Dashboard)
	}

	configs := s.engine.Group("/configs")
	{
		configs.GET("", s.ListConfigs)
		configs.GET("/:year", s.GetConfig)
		configs.PUT("/:year", s.UpsertConfig)
	}

	s.engine.GET("/audit", s.ListAudit)
}

func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)
