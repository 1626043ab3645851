// Package app assembles the long-lived dependencies shared by the server,
// the worker and bookctl from the config package.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/bookmeta/config"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/book"
	"github.com/feichai0017/bookmeta/internal/service/extraction"
	"github.com/feichai0017/bookmeta/internal/service/intake"
	"github.com/feichai0017/bookmeta/internal/utils/validator"
	"github.com/feichai0017/bookmeta/pkg/deadletter"
	"github.com/feichai0017/bookmeta/pkg/logger"
	"github.com/feichai0017/bookmeta/pkg/notify"
	"github.com/feichai0017/bookmeta/pkg/queue"
	"github.com/feichai0017/bookmeta/pkg/storage"
)

type App struct {
	Logger      logger.Logger
	Redis       redis.UniversalClient
	Storage     storage.Storage
	Books       book.Store
	Queue       *queue.AsynqQueue
	DeadLetters deadletter.Queue
	Status      notify.StatusStore
	Notifier    *notify.Notifier
	Replayer    *extraction.Replayer
	Intake      *intake.Service
	Pipeline    *config.PipelineConfig

	closers []func() error
}

// New connects every shared backend. Strand backends are built separately by
// Orchestrator since only the worker runs them.
func New(ctx context.Context, log logger.Logger) (*App, error) {
	a := &App{Logger: log, Pipeline: config.GetPipelineConfig()}

	rc := config.GetRedisConfig()
	a.Redis = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{rc.Addr},
		Password: rc.Password,
		DB:       rc.DB,
	})
	a.closers = append(a.closers, a.Redis.Close)
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", rc.Addr, err)
	}

	sc := config.GetServerConfig()
	store, err := storage.NewStorage(ctx, storage.StorageType(sc.StorageType), log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Storage = store

	books, err := newBookStore(log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Books = books

	a.Queue = queue.NewAsynqQueue(&queue.Config{
		RedisAddr:      rc.Addr,
		RedisPassword:  rc.Password,
		RedisDB:        rc.DB,
		ProcessTimeout: a.Pipeline.RunBudget + a.Pipeline.StrandTimeout,
	}, log.Named("queue"))
	a.closers = append(a.closers, a.Queue.Close)

	a.DeadLetters = deadletter.NewRedisQueue(a.Redis)
	redisStatus := notify.NewRedisStatus(a.Redis)
	a.Status = redisStatus
	a.Notifier = notify.NewNotifier(log.Named("notify"),
		notify.NewRedisPublisher(a.Redis),
		redisStatus,
		notify.NewLogListener(log.Named("completion")),
	)
	a.Replayer = extraction.NewReplayer(a.DeadLetters, a.Queue, a.Books, log)

	strategy, _ := models.ParseStrategy(a.Pipeline.DefaultStrategy)
	a.Intake = intake.NewService(a.Books, a.Storage, a.Queue, a.Status,
		validator.NewUploadValidator(log.Named("validator"), &validator.ValidatorConfig{
			MaxFileSize:  sc.MaxUploadBytes,
			AllowedTypes: validator.DefaultConfig().AllowedTypes,
			MinDimension: validator.DefaultConfig().MinDimension,
			MaxDimension: validator.DefaultConfig().MaxDimension,
		}),
		log.Named("intake"),
		&intake.ServiceConfig{Bucket: bucketFor(sc.StorageType), DefaultStrategy: strategy},
	)
	return a, nil
}

func newBookStore(log logger.Logger) (book.Store, error) {
	dsn := config.GetDatabaseConfig().DSN
	if dsn == "" {
		log.Warn("DATABASE_DSN not set, book records are kept in memory")
		return book.NewMemoryStore(), nil
	}
	store, err := book.OpenPostgres(dsn, log.Named("books"))
	if err != nil {
		return nil, fmt.Errorf("failed to open book store: %w", err)
	}
	return store, nil
}

func bucketFor(storageType string) string {
	if storage.StorageType(storageType) == storage.StorageTypeMinio {
		return config.GetMinioConfig().BucketName
	}
	return config.GetS3Config().BucketName
}

// Close releases everything New and Orchestrator opened, newest first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
