package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"plantanalyzer/internal/config"
	"plantanalyzer/internal/handler"
	"plantanalyzer/internal/inference"
	"plantanalyzer/internal/metrics"
	"plantanalyzer/internal/repository"
	"plantanalyzer/internal/service"
)

type Server struct {
	httpServer *http.Server
	closers    []io.Closer
	cfg        *config.Config
	log        *zap.Logger
}

// Deps are the collaborators the router needs. Tests substitute the
// filesystem and inference client.
type Deps struct {
	Fs       afero.Fs
	Model    inference.Client
	Registry *prometheus.Registry
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	gemini, err := inference.NewGeminiClient(ctx, &cfg.Gemini, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router, err := NewRouter(cfg, Deps{
		Fs:       afero.NewOsFs(),
		Model:    gemini,
		Registry: reg,
	}, log)
	if err != nil {
		gemini.Close()
		return nil, err
	}

	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      cfg.Gemini.Timeout + 60*time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MB
		},
		closers: []io.Closer{gemini},
		cfg:     cfg,
		log:     log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	return server, nil
}

// NewRouter wires services and handlers onto a gin engine.
func NewRouter(cfg *config.Config, deps Deps, log *zap.Logger) (*gin.Engine, error) {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	rec, err := metrics.New(deps.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	files := repository.NewFileRepository(deps.Fs, log)
	analysis := service.NewAnalysisService(files, deps.Model, rec, cfg, log)
	reports := service.NewReportService(files, rec, cfg, log)
	h := handler.NewHandler(analysis, reports, log)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
		router.Use(cors.New(corsCfg))
	}

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	router.POST("/analyze", bodyLimit(cfg.App.MaxUploadSize), h.Analyze)
	router.POST("/download", bodyLimit(cfg.App.MaxJSONSize), h.Download)
	router.NoRoute(h.Static(cfg.App.PublicDir))

	return router, nil
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	err := s.httpServer.Shutdown(ctx)
	for _, c := range s.closers {
		if cerr := c.Close(); cerr != nil {
			s.log.Warn("Failed to close dependency", zap.Error(cerr))
		}
	}
	return err
}
