/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kvn147/Speak-Easy-Copy/internal/api"
	"github.com/kvn147/Speak-Easy-Copy/internal/archive"
	"github.com/kvn147/Speak-Easy-Copy/internal/auth"
	"github.com/kvn147/Speak-Easy-Copy/internal/cache"
	"github.com/kvn147/Speak-Easy-Copy/internal/config"
	"github.com/kvn147/Speak-Easy-Copy/internal/db"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
	"github.com/kvn147/Speak-Easy-Copy/internal/session"
	"github.com/kvn147/Speak-Easy-Copy/internal/storage"
	"github.com/kvn147/Speak-Easy-Copy/internal/stream"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
	"github.com/kvn147/Speak-Easy-Copy/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db       *gorm.DB
	cache    *cache.Cache
	bus      events.Broker
	store    storage.ObjectStore
	archive  *archive.Service
	sessions *session.Manager
	verifier *auth.Verifier
	api      *api.API
	stream   *stream.Handler

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("speakeasy-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for WebSocket connections
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout set to 0 for websocket sessions; the middleware timeout covers REST routes
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	ctx := context.Background()

	s.verifier = auth.NewVerifier([]byte(s.cfg.JWTSigningKey))
	if !s.verifier.Enabled() {
		s.logger.Warn().Msg("no JWT signing key configured, conversation API will reject every request")
	}

	s.bus = s.newEventBus()

	store, err := s.newObjectStore(ctx)
	if err != nil {
		return err
	}
	s.store = store

	var archiveOpts []archive.Option
	if s.cfg.CatalogEnabled() {
		database, err := db.Connect(s.cfg)
		if err != nil {
			return err
		}
		s.DeferClose(func() error { return db.Close(database) })
		if err := db.Migrate(database); err != nil {
			return err
		}
		s.db = database
		archiveOpts = append(archiveOpts, archive.WithCatalog(archive.NewCatalog(database)))
		s.logger.Info().Str("backend", string(s.cfg.DBBackend)).Msg("conversation catalog enabled")
	}

	// Listing cache for reducing storage and database reads
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		listingCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = listingCache
			s.DeferClose(func() error { return s.cache.Close() })
			archiveOpts = append(archiveOpts, archive.WithCache(listingCache))
		}
	}

	s.archive = archive.NewService(store, s.logger, archiveOpts...)

	collaborators := s.newCollaborators(ctx)
	s.sessions = session.NewManager(sessionConfig(s.cfg), session.Deps{
		Detector:    collaborators.detector,
		Transcriber: collaborators.transcriber,
		Advisor:     collaborators.advisor,
		Summarizer:  collaborators.summarizer,
		Archive:     s.archive,
		Events:      s.bus,
		Logger:      s.logger,
	})
	// Registered last so pending finalizations complete before storage and the bus close.
	s.DeferClose(s.sessions.Close)

	streamCfg := stream.DefaultConfig()
	streamCfg.ReadLimit = s.cfg.WSReadLimit
	s.stream = stream.NewHandler(s.sessions, streamCfg, s.logger)

	s.api = api.New(s.archive, s.verifier, s.logger)
	return nil
}

func (s *Server) newObjectStore(ctx context.Context) (storage.ObjectStore, error) {
	if s.cfg.S3Bucket != "" {
		awsCfg, err := s.cfg.AWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		store, err := storage.NewS3Store(awsCfg, storage.S3Config{
			Bucket:    s.cfg.S3Bucket,
			Endpoint:  s.cfg.S3Endpoint,
			PathStyle: s.cfg.S3UsePathStyle,
		}, s.logger)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("bucket", s.cfg.S3Bucket).Msg("conversations stored in S3")
		return store, nil
	}

	if err := os.MkdirAll(s.cfg.DataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", s.cfg.DataRoot, err)
	}
	store := storage.NewFilesystemStore(s.cfg.DataRoot, s.logger)
	if err := store.CheckAccess(ctx); err != nil {
		return nil, err
	}
	s.logger.Info().Str("path", s.cfg.DataRoot).Msg("conversations stored on local filesystem")
	return store, nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown stops accepting requests, then closes the open session websockets so that no
// session traffic outlives the server. Close must still be called afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if serr := s.stream.Shutdown(ctx); serr != nil && err == nil {
		err = fmt.Errorf("close session websockets: %w", serr)
	}
	return err
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "ok",
			"version":         version.Version,
			"active_sessions": s.sessions.ActiveSessions(),
		})
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.With(auth.Optional(s.verifier)).Get(auth.StreamPath, s.stream.ServeHTTP)

	s.api.Routes(s.router)
}

func sessionConfig(cfg *config.Config) session.Config {
	sc := session.DefaultConfig()
	sc.FrameInterval = cfg.FrameInterval
	sc.AudioInterval = cfg.AudioInterval
	sc.MinAudioChunks = cfg.MinAudioChunks
	sc.AdviceCooldown = cfg.AdviceCooldown
	sc.Retention = cfg.Retention
	sc.AdviceWindow = cfg.AdviceWindow
	sc.AudioSubChunkSize = cfg.AudioSubChunkSize
	sc.AudioFormat.SampleRateHz = cfg.SampleRateHz
	sc.AudioFormat.LanguageCode = cfg.LanguageCode
	sc.FinalizeDelay = cfg.FinalizeDelay
	sc.PersistOnDisconnect = cfg.PersistOnDisconnect
	sc.RecordingEnabled = cfg.RecordingEnabled
	sc.RecordingMaxBytes = cfg.RecordingMaxBytes
	sc.CallTimeout = cfg.CallTimeout
	sc.DefaultUserID = cfg.DefaultUserID
	return sc
}
