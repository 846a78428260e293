package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/colorize/internal/auth"
	"github.com/example/colorize/internal/colorize"
	"github.com/example/colorize/internal/config"
	"github.com/example/colorize/internal/handlers"
	"github.com/example/colorize/internal/imageprocessor"
	"github.com/example/colorize/internal/logging"
	"github.com/example/colorize/internal/repository"
	"github.com/example/colorize/internal/runner"
	"github.com/example/colorize/internal/storage"
	"github.com/example/colorize/internal/usecase"
)

func main() {
	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := storage.NewStore(cfg.UploadDir, cfg.ResultsDir)
	if err != nil {
		logger.Fatal("failed to prepare storage", zap.Error(err))
	}

	processor, closeProcessor := initProcessor(cfg, logger)
	defer closeProcessor()

	var repo usecase.JobRepository
	if cfg.LedgerEnabled() {
		jobRepo := repository.NewJobRepository(initDatabase(ctx, cfg.DatabaseDSN, logger), logger)
		if err := jobRepo.AutoMigrate(ctx); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
		repo = jobRepo
	}

	var cache usecase.Cache
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
		redisCancel()
		defer redisClient.Close()
		cache = usecase.NewRedisCache(redisClient)
	}

	uc := usecase.NewColorizationUseCase(store, processor, repo, cache, logger)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	routes := handlers.RouteConfig{
		UploadDir:     store.UploadDir(),
		ResultsDir:    store.ResultsDir(),
		LedgerEnabled: cfg.LedgerEnabled(),
	}
	if cfg.JWTSecret != "" {
		routes.AdminAuth = auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	}
	handlers.RegisterRoutes(r, uc, routes)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("colorize server listening",
		zap.String("addr", cfg.Addr),
		zap.String("mode", cfg.Mode),
		zap.Bool("ledger", cfg.LedgerEnabled()),
	)
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// initProcessor picks how uploads reach the colorization routine. The
// returned func releases whatever the processor holds.
func initProcessor(cfg config.Config, logger *zap.Logger) (imageprocessor.Client, func()) {
	if cfg.Mode == config.ModeInProcess {
		local, err := colorize.NewLocalClient(cfg.ModelsDir, logger)
		if err != nil {
			logger.Fatal("failed to load model bundle", zap.String("models_dir", cfg.ModelsDir), zap.Error(err))
		}
		return local, func() {
			if err := local.Close(); err != nil {
				logger.Warn("failed to release model bundle", zap.Error(err))
			}
		}
	}
	return runner.NewProcessClient(cfg.ColorizerBin, cfg.ModelsDir, cfg.Timeout, logger), func() {}
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.String("addr", addr), zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	if signalCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		signalCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-signalCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx := context.Background()
		if shutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
		}
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
