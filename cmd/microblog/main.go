package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"microblog/internal/auth"
	"microblog/internal/config"
	"microblog/internal/database"
	"microblog/internal/handlers"
	"microblog/internal/logging"
	"microblog/internal/middleware"
	"microblog/internal/services"
	"microblog/internal/validation"
)

// checkOrCreateDir makes sure dirPath exists and is a directory.
func checkOrCreateDir(dirPath string) error {
	// Never create data under the filesystem root or the bare working dir.
	if dirPath == "" || dirPath == "/" || dirPath == "." {
		return fmt.Errorf("refusing to use %q as a data directory", dirPath)
	}
	info, err := os.Stat(dirPath)
	// Missing: create it together with its parents.
	if errors.Is(err, os.ErrNotExist) {
		logging.Info().Str("dir", dirPath).Msg("creating directory")
		return os.MkdirAll(dirPath, 0o755)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", dirPath, err)
	}
	// Something is there, but it is a file.
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return nil
}

func main() {
	// Defaults, then config.yaml, then the environment.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	// Until here the logger ran with its built-in json/info setup.
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	// The database file itself is created by sqlite, its directory is not.
	if err := checkOrCreateDir(filepath.Dir(cfg.Database.Path)); err != nil {
		logging.Fatal().Err(err).Msg("database directory unusable")
	}
	if err := checkOrCreateDir(cfg.Uploads.Dir); err != nil {
		logging.Fatal().Err(err).Msg("upload directory unusable")
	}

	// Open also creates the tables on first start.
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer db.Close()

	// Owner-or-admin rule for editing and deleting posts and comments.
	policy, err := auth.NewPolicy()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build authorization policy")
	}
	// Makes `binding:"notblank"` usable on request structs.
	if err := validation.RegisterGinValidations(); err != nil {
		logging.Fatal().Err(err).Msg("failed to register validators")
	}

	gin.SetMode(cfg.Server.Mode)
	// gin.New instead of gin.Default: logging and recovery come from our own middleware.
	router := gin.New()
	// Without trusted proxies ClientIP is the socket address, which the login limiter keys on.
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logging.Fatal().Err(err).Msg("invalid trusted proxies")
	}
	// Uploads up to the size limit stay in memory while being parsed.
	router.MaxMultipartMemory = cfg.Uploads.MaxSize

	// Signed cookie sessions only remember which user logged in on this browser.
	store := cookie.NewStore([]byte(cfg.Session.Secret))
	store.Options(sessions.Options{
		Path:   "/",
		MaxAge: int(cfg.Session.MaxAge.Seconds()),
		// Not readable from page scripts.
		HttpOnly: true,
		// Enable behind https.
		Secure:   cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	// Request id, access log, metrics and panic recovery, in that order.
	router.Use(middleware.Standard()...)
	router.Use(sessions.Sessions(cfg.Session.Name, store))

	// A zero limit turns login throttling off.
	var loginLimiter *middleware.RateLimiter
	if cfg.Security.LoginRateLimit > 0 {
		loginLimiter = middleware.NewRateLimiter(cfg.Security.LoginRateLimit, time.Minute)
	}

	uploads := services.NewUploads(cfg.Uploads.Dir, cfg.Uploads.URLPrefix, cfg.Uploads.MaxSize)
	handlers.New(db, policy, uploads).Register(router, loginLimiter)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Serve in the background; main waits for a signal below.
	go func() {
		logging.Info().Str("addr", srv.Addr).Str("mode", cfg.Server.Mode).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	// Ctrl+C locally, SIGTERM from docker or systemd.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// In-flight requests get ten seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown error")
	}
	logging.Info().Msg("server stopped")
}
