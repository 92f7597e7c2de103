package server

import (
	"context"
	"net/http"
	"time"

	"github.com/beaconhq/beacon/internal/audit"
	auditdomain "github.com/beaconhq/beacon/internal/audit/domain"
	"github.com/beaconhq/beacon/internal/clock"
	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/environment"
	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	"github.com/beaconhq/beacon/internal/evaluation"
	"github.com/beaconhq/beacon/internal/flag"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	"github.com/beaconhq/beacon/internal/observability"
	obsmiddleware "github.com/beaconhq/beacon/internal/observability/logger"
	obsmetrics "github.com/beaconhq/beacon/internal/observability/metrics"
	obstracing "github.com/beaconhq/beacon/internal/observability/tracing"
	"github.com/beaconhq/beacon/internal/organization"
	organizationdomain "github.com/beaconhq/beacon/internal/organization/domain"
	"github.com/beaconhq/beacon/internal/project"
	projectdomain "github.com/beaconhq/beacon/internal/project/domain"
	"github.com/beaconhq/beacon/internal/ratelimit"
	"github.com/beaconhq/beacon/internal/telemetry"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	clock.Module,
	organization.Module,
	project.Module,
	environment.Module,
	flag.Module,
	evaluation.Module,
	telemetry.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
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
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	auditSvc        auditdomain.Service
	organizationSvc organizationdomain.Service
	projectSvc      projectdomain.Service
	environmentSvc  environmentdomain.Service
	flagSvc         flagdomain.Service
	evaluationSvc   *evaluation.Service
	snapshotStore   *evaluation.Store
	evaluateLimiter *ratelimit.EvaluateLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	AuditSvc        auditdomain.Service
	OrganizationSvc organizationdomain.Service
	ProjectSvc      projectdomain.Service
	EnvironmentSvc  environmentdomain.Service
	FlagSvc         flagdomain.Service
	EvaluationSvc   *evaluation.Service
	SnapshotStore   *evaluation.Store
	EvaluateLimiter *ratelimit.EvaluateLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		auditSvc:        p.AuditSvc,
		organizationSvc: p.OrganizationSvc,
		projectSvc:      p.ProjectSvc,
		environmentSvc:  p.EnvironmentSvc,
		flagSvc:         p.FlagSvc,
		evaluationSvc:   p.EvaluationSvc,
		snapshotStore:   p.SnapshotStore,
		evaluateLimiter: p.EvaluateLimiter,
	}

	svc.registerHealthRoutes()
	svc.registerAPIRoutes()
	svc.registerSDKRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/ready", s.Readiness)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuditContext(), s.OrgContext())

	// -------- Organizations --------
	api.GET("/organizations", s.ListOrganizations)
	api.POST("/organizations", s.CreateOrganization)
	api.GET("/organizations/:id", s.GetOrganizationByID)

	// -------- Projects --------
	api.GET("/projects", s.ListProjects)
	api.POST("/projects", s.CreateProject)
	api.GET("/projects/:id", s.GetProjectByID)
	api.PATCH("/projects/:id", s.UpdateProject)
	api.DELETE("/projects/:id", s.DeleteProject)

	// -------- Environments --------
	api.GET("/environments", s.ListEnvironments)
	api.POST("/environments", s.CreateEnvironment)
	api.GET("/environments/:id", s.GetEnvironmentByID)
	api.POST("/environments/:id/rotate-keys", s.RotateEnvironmentKeys)
	api.DELETE("/environments/:id", s.DeleteEnvironment)

	// -------- Flags --------
	api.GET("/flags", s.ListFlags)
	api.POST("/flags", s.CreateFlag)
	api.GET("/flags/:id", s.GetFlagByID)
	api.PATCH("/flags/:id", s.UpdateFlag)
	api.POST("/flags/:id/archive", s.ArchiveFlag)

	// -------- Flag states --------
	api.GET("/flags/:id/states", s.ListFlagStates)
	api.PATCH("/flags/:id/states/:envId", s.UpdateFlagState)
	api.POST("/flags/:id/states/:envId/toggle", s.ToggleFlagState)

	// -------- Rules --------
	api.GET("/flags/:id/states/:envId/rules", s.ListRules)
	api.POST("/flags/:id/states/:envId/rules", s.CreateRule)
	api.PATCH("/flags/:id/states/:envId/rules/:ruleId", s.UpdateRule)
	api.DELETE("/flags/:id/states/:envId/rules/:ruleId", s.DeleteRule)

	// -------- Audit logs --------
	api.GET("/audit_logs", s.ListAuditLogs)
}

func (s *Server) registerSDKRoutes() {
	sdk := s.engine.Group("/sdk")

	sdk.POST("/evaluate", s.EvaluateRateLimit(), s.Evaluate)
}
