package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/bookmeta/config"
	"github.com/feichai0017/bookmeta/internal/app"
	"github.com/feichai0017/bookmeta/pkg/logger"
	"github.com/feichai0017/bookmeta/pkg/worker"
)

func main() {
	sc := config.GetServerConfig()
	log, err := logger.NewLogger(
		logger.WithLevel(sc.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
		logger.WithService("bookmeta-worker"),
		logger.WithRotation(sc.LogMaxSizeMB, sc.LogMaxBackups, sc.LogMaxAgeDays),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, log)
	if err != nil {
		log.Error("Failed to initialize application", logger.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	orchestrator, err := a.Orchestrator(ctx)
	if err != nil {
		log.Error("Failed to create orchestrator", logger.Error(err))
		os.Exit(1)
	}

	rc := config.GetRedisConfig()
	workerCfg := &worker.Config{
		RedisAddr:      rc.Addr,
		RedisPassword:  rc.Password,
		RedisDB:        rc.DB,
		Concurrency:    rc.WorkerConcurrency,
		ReplaySchedule: a.Pipeline.ReplaySchedule,
		ReplayMax:      a.Pipeline.ReplayMax,
	}
	w, err := worker.NewExtractionWorker(workerCfg, orchestrator, a.Replayer, log.Named("worker"))
	if err != nil {
		log.Error("Failed to create extraction worker", logger.Error(err))
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down worker...")
		return w.Stop()
	})

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", logger.Error(err))
	}
	log.Info("Worker stopped")
}
