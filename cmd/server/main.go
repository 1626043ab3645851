package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/bookmeta/api/handlers"
	"github.com/feichai0017/bookmeta/api/middleware"
	"github.com/feichai0017/bookmeta/api/routes"
	"github.com/feichai0017/bookmeta/config"
	"github.com/feichai0017/bookmeta/internal/app"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

func main() {
	sc := config.GetServerConfig()

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(sc.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/app.log"}),
		logger.WithService("bookmeta-server"),
		logger.WithRotation(sc.LogMaxSizeMB, sc.LogMaxBackups, sc.LogMaxAgeDays),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	auth := config.GetAuthConfig()
	if auth.JWTSecret == "" || auth.EventSecret == "" {
		log.Fatal("JWT_SECRET and EVENT_SIGNING_SECRET must both be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, log)
	if err != nil {
		log.Fatal("Failed to initialize application", logger.Error(err))
	}
	defer a.Close()

	h := handlers.NewHandlers(a.Intake, a.Replayer, log.Named("http"))
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = sc.MaxUploadBytes
	routes.SetupRoutes(r, h, routes.Options{
		AllowedOrigins: sc.AllowedOrigins,
		Auth:           middleware.AuthConfig{Secret: auth.JWTSecret, Issuer: auth.Issuer},
		EventSecret:    auth.EventSecret,
	})

	srv := &http.Server{
		Addr:    sc.Addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", sc.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", logger.Error(err))
	}
}
