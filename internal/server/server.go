// Package server is the composition root: it opens the stores, wires
// repositories, services and handlers together, and owns the HTTP
// server's lifecycle.
//
// DEPENDENCY FLOW:
//
//	sqlite.DB → AuthService → auth.Sessions ┐
//	sqlite.DB → TripService ← upload.Uploader ├→ handlers → chi router
//	view.Renderer ──────────────────────────┘
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/travel-journal/internal/auth"
	"github.com/sakif/travel-journal/internal/config"
	"github.com/sakif/travel-journal/internal/handler"
	"github.com/sakif/travel-journal/internal/middleware"
	sqliteRepo "github.com/sakif/travel-journal/internal/repository/sqlite"
	"github.com/sakif/travel-journal/internal/service"
	"github.com/sakif/travel-journal/internal/upload"
	"github.com/sakif/travel-journal/internal/view"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// uploadsPath is where disk-stored images are served from.
const uploadsPath = "/uploads/"

// Server holds the router and every resource that must be closed on
// shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db    *sqliteRepo.DB
	redis *redis.Client

	Auth  *service.AuthService
	Trips *service.TripService
}

// Option customises New. Tests use it to make bcrypt cheap.
type Option func(*options)

type options struct {
	passwords *auth.PasswordService
}

// WithPasswordService replaces the default bcrypt cost-12 service.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(o *options) { o.passwords = p }
}

// New opens the database and optional Redis and MinIO connections, creates
// the seed user if configured, and sets up all routes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{passwords: auth.NewPasswordService()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setup(ctx, o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB creates the database's parent directory if needed and opens it.
func OpenDB(dbPath string) (*sqliteRepo.DB, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func (s *Server) setup(ctx context.Context, o options) error {
	s.Auth = service.NewAuthService(s.db, o.passwords, s.logger)

	if s.config.SeedUsername != "" && s.config.SeedPassword != "" {
		_, created, err := s.Auth.EnsureUser(ctx, s.config.SeedUsername, s.config.SeedPassword)
		if err != nil {
			return fmt.Errorf("creating seed user: %w", err)
		}
		if created {
			s.logger.Info("seed user created", slog.String("username", s.config.SeedUsername))
		}
	}

	store, err := s.sessionStore(ctx)
	if err != nil {
		return err
	}
	sessions := auth.NewSessions(store, s.Auth, auth.CookieConfig{
		Name:   auth.DefaultCookieName,
		MaxAge: s.config.SessionTTL,
		Secure: s.config.CookieSecure,
	}, s.logger)

	files, imageBase, serveDir, err := s.fileStore(ctx)
	if err != nil {
		return err
	}
	s.Trips = service.NewTripService(s.db, upload.NewUploader(files, s.logger), s.logger)

	views, err := view.New(imageBase, s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	s.setupRoutes(sessions, views, serveDir)
	return nil
}

// sessionStore picks Redis when REDIS_ADDR is set and signed JWT cookies
// otherwise.
func (s *Server) sessionStore(ctx context.Context) (auth.SessionStore, error) {
	if s.config.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.config.RedisAddr,
			Password: s.config.RedisPassword,
			DB:       s.config.RedisDB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", s.config.RedisAddr, err)
		}
		s.logger.Info("sessions stored in redis", slog.String("addr", s.config.RedisAddr))
		return auth.NewRedisSessionStore(s.redis, s.config.SessionTTL), nil
	}

	secret := s.config.SessionSecret
	if secret == "" {
		secret = rand.Text()
		s.logger.Warn("SESSION_SECRET not set; using a random key, sessions end when the process restarts")
	}
	tokens, err := auth.NewTokenService(secret, s.config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	return tokens, nil
}

// fileStore picks MinIO when MINIO_ENDPOINT is set and the upload directory
// otherwise. It also returns the URL prefix images are served under and,
// for disk storage, the directory the app must serve them from.
func (s *Server) fileStore(ctx context.Context) (upload.FileStore, string, string, error) {
	if s.config.MinioEndpoint != "" {
		store, err := upload.NewMinioStore(ctx,
			s.config.MinioEndpoint,
			s.config.MinioAccessKey,
			s.config.MinioSecretKey,
			s.config.MinioBucket,
			s.config.MinioUseSSL,
		)
		if err != nil {
			return nil, "", "", err
		}
		s.logger.Info("images stored in minio",
			slog.String("endpoint", s.config.MinioEndpoint),
			slog.String("bucket", s.config.MinioBucket),
		)
		return store, view.ImageBase(s.config.MinioEndpoint, s.config.MinioBucket, s.config.MinioUseSSL), "", nil
	}

	disk, err := upload.NewDiskStore(s.config.UploadDir)
	if err != nil {
		return nil, "", "", err
	}
	return disk, uploadsPath, disk.Dir(), nil
}

// setupRoutes registers middleware and routes.
//
// ROUTES:
//
//	GET       /           list trips (public)
//	GET       /trip/{id}  one trip (public)
//	GET/POST  /login      login form / attempt
//	GET/POST  /register   registration form / create account and log in
//	GET       /logout     end session (login required)
//	GET/POST  /add        add-trip form / create trip (login required)
//	GET       /uploads/*  stored images (disk storage only)
//
// Middleware order matters: RequestID must come before the logger so every
// log line carries the ID, and the session resolver runs last so handlers
// see the Identity.
func (s *Server) setupRoutes(sessions *auth.Sessions, views *view.Renderer, serveDir string) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(sessions.Middleware)

	errorPages := handler.NewErrorPages(views)
	s.router.NotFound(errorPages.NotFound)
	s.router.MethodNotAllowed(errorPages.MethodNotAllowed)

	trips := handler.NewTripHandler(s.Trips, views, s.logger)
	users := handler.NewAuthHandler(s.Auth, sessions, views, s.logger)

	s.router.Get("/", trips.HandleList)
	s.router.Get("/trip/{id}", trips.HandleDetail)

	s.router.Get("/login", users.HandleLoginForm)
	s.router.Post("/login", users.HandleLogin)
	s.router.Get("/register", users.HandleRegisterForm)
	s.router.Post("/register", users.HandleRegister)

	s.router.Group(func(r chi.Router) {
		r.Use(sessions.RequireAuth)
		r.Get(auth.LogoutPath, users.HandleLogout)
		r.Get("/add", trips.HandleAddForm)
		r.Post("/add", trips.HandleCreate)
	})

	if serveDir != "" {
		fileServer := http.FileServer(http.Dir(serveDir))
		s.router.Handle(uploadsPath+"*", http.StripPrefix(uploadsPath, fileServer))
	}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and Redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// Start serves HTTP until SIGINT or SIGTERM, then drains in-flight requests
// for up to 30 seconds and closes every connection.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
