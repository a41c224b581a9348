package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/petrorag/petrorag/internal/batch"
	"github.com/petrorag/petrorag/internal/blob"
	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/events"
	handlers "github.com/petrorag/petrorag/internal/handlers/v1alpha1"
	"github.com/petrorag/petrorag/internal/pipeline"
	"github.com/petrorag/petrorag/internal/progress"
	"github.com/petrorag/petrorag/internal/rag"
	"github.com/petrorag/petrorag/internal/service"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/pkg/log"
	"github.com/petrorag/petrorag/pkg/metrics"
	"github.com/petrorag/petrorag/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
}

// New returns a new instance of the petrorag API server.
func New(
	cfg *config.Config,
	store store.Store,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	blobs, err := blob.NewStore(s.cfg)
	if err != nil {
		return err
	}

	embedder, err := rag.NewEmbedder(s.cfg)
	if err != nil {
		return err
	}
	index, err := rag.NewQdrantIndex(s.cfg, embedder)
	if err != nil {
		return err
	}
	if err := index.EnsureCollection(ctx); err != nil {
		zap.S().Named("api_server").Warnw("could not ensure vector collection", "error", err)
	}
	analyzer, err := rag.NewImageAnalyzer(s.cfg)
	if err != nil {
		return err
	}
	answerer, err := rag.NewAnswerer(s.cfg)
	if err != nil {
		return err
	}

	progressStore := progress.NewStore(
		progress.WithRetention(time.Duration(s.cfg.Service.BatchRetentionHours) * time.Hour),
	)
	go progressStore.Run(ctx)

	var executorOpts []pipeline.ExecutorOption
	if s.cfg.Service.PipelineStageTimeout > 0 {
		executorOpts = append(executorOpts,
			pipeline.WithStageTimeout(time.Duration(s.cfg.Service.PipelineStageTimeout)*time.Second))
	}
	executor := pipeline.NewExecutor(
		progressStore,
		s.store,
		rag.NewHTTPParser(s.cfg, blobs),
		rag.NewImageExtractor(blobs),
		rag.NewSectionChunker(),
		analyzer,
		index,
		executorOpts...,
	)

	eventProducer := events.NewEventProducer(&events.StdoutWriter{})
	defer func() {
		_ = eventProducer.Close()
	}()

	coordinator, err := batch.NewCoordinator(ctx, s.cfg, progressStore, s.store, blobs, executor, index, eventProducer)
	if err != nil {
		return err
	}
	defer coordinator.Close()

	srvHandler := service.NewServiceHandler(s.store, blobs, coordinator, index, index, answerer, s.cfg)
	apiHandler := handlers.NewHandler(srvHandler)

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   strings.Split(s.cfg.Service.CorsAllowedOrigins, ","),
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		log.Logger(zap.L(), "api"),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := srvHandler.Health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	router.Route("/api/v1", apiHandler.RegisterRoutes)

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
