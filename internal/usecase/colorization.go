package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/colorize/internal/auth"
	"github.com/example/colorize/internal/imageprocessor"
	"github.com/example/colorize/internal/logging"
	"github.com/example/colorize/internal/repository"
	"github.com/example/colorize/internal/retry"
	"github.com/example/colorize/internal/storage"
)

var (
	// ErrLedgerDisabled is returned by job lookups when neither a database
	// nor a cache is configured.
	ErrLedgerDisabled = errors.New("job ledger is disabled")
	// ErrCacheMiss is returned by a Cache for unknown keys.
	ErrCacheMiss = errors.New("cache miss")
)

// JobRepository defines the persistence operations needed by the use case.
type JobRepository interface {
	SaveJob(ctx context.Context, job *repository.ColorizationJob) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.ColorizationJob, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// FileStore persists uploads and hands out result paths.
type FileStore interface {
	SaveUpload(src io.Reader, originalName string) (*storage.Upload, error)
	NewResult() storage.Result
}

// Outcome is what the HTTP layer reports for one colorization request.
type Outcome struct {
	RequestID         string
	Success           bool
	OriginalImageURL  string
	ColorizedImageURL string
	Error             string
}

// ColorizationUseCase saves an upload, runs the colorization routine on it
// and records the job. repo and cache may be nil.
type ColorizationUseCase struct {
	store     FileStore
	processor imageprocessor.Client
	repo      JobRepository
	cache     Cache
	logger    *zap.Logger
	policy    retry.Policy
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewColorizationUseCase constructs a new use case instance.
func NewColorizationUseCase(store FileStore, processor imageprocessor.Client, repo JobRepository, cache Cache, logger *zap.Logger) *ColorizationUseCase {
	return &ColorizationUseCase{
		store:     store,
		processor: processor,
		repo:      repo,
		cache:     cache,
		logger:    logger.Named("colorization_usecase"),
		policy:    retry.DefaultPolicy,
		cacheTTL:  10 * time.Minute,
		now:       time.Now,
	}
}

// Colorize persists src under a fresh name, runs the routine and reports the
// outcome. A returned error means the request could not be orchestrated
// (I/O or spawn failure); a routine that ran and failed is an Outcome with
// Success false.
func (uc *ColorizationUseCase) Colorize(ctx context.Context, originalName string, src io.Reader) (*Outcome, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.colorize", requestID)

	upload, err := uc.store.SaveUpload(src, originalName)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.save_upload", requestID, err)
		opLogger.Error("failed to save upload", zap.Error(wrapped))
		return nil, wrapped
	}
	result := uc.store.NewResult()

	start := uc.now()
	res, err := uc.processor.Colorize(ctx, upload.Path, result.Path)
	latency := uc.now().Sub(start)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.run_colorizer", requestID, err)
		opLogger.Error("colorizer could not be run", zap.Error(wrapped))
		return nil, wrapped
	}

	outcome := &Outcome{RequestID: requestID, Success: res.Success}
	if res.Success {
		outcome.OriginalImageURL = upload.URL()
		outcome.ColorizedImageURL = result.URL()
		opLogger.Info("image colorized",
			zap.String("input", upload.Name),
			zap.String("output", result.Name),
			zap.Duration("latency", latency),
		)
	} else {
		outcome.Error = fmt.Sprintf("Colorization failed: %s", res.Stderr)
		opLogger.Warn("colorization failed", zap.Int("exit_code", res.ExitCode), zap.String("stderr", res.Stderr))
	}

	uc.record(context.WithoutCancel(ctx), &repository.ColorizationJob{
		RequestID:    requestID,
		OriginalName: originalName,
		InputFile:    upload.Name,
		OutputFile:   result.Name,
		UploadSize:   upload.Size,
		SHA1Hash:     upload.SHA1,
		Success:      res.Success,
		ExitCode:     res.ExitCode,
		Error:        res.Stderr,
		LatencyMs:    latency.Milliseconds(),
		CreatedAt:    start.UTC(),
	})

	return outcome, nil
}

// record stores the job in the ledger. Failures are logged only: the caller
// already has its answer.
func (uc *ColorizationUseCase) record(ctx context.Context, job *repository.ColorizationJob) {
	opLogger := logging.WithOperation(uc.logger, "usecase.record_job", job.RequestID)

	if uc.repo != nil {
		if err := uc.repo.SaveJob(ctx, job); err != nil {
			opLogger.Warn("failed to persist colorization job", zap.Error(err))
		}
	}

	if uc.cache == nil {
		return
	}
	serialized, err := json.Marshal(job)
	if err != nil {
		opLogger.Warn("failed to serialize colorization job", zap.Error(err))
		return
	}
	err = retry.Do(ctx, uc.logger, uc.policy, "cache.set.job", job.RequestID, func() error {
		return uc.cache.Set(ctx, jobCacheKey(job.RequestID), string(serialized), uc.cacheTTL)
	})
	if err != nil {
		opLogger.Warn("failed to cache colorization job", zap.Error(err))
	}
}

// GetJob returns a recorded job from the cache or, failing that, the
// database.
func (uc *ColorizationUseCase) GetJob(ctx context.Context, requestID string) (*repository.ColorizationJob, error) {
	if uc.repo == nil && uc.cache == nil {
		return nil, ErrLedgerDisabled
	}
	opLogger := withSubject(ctx, logging.WithOperation(uc.logger, "usecase.get_job", requestID))
	opLogger.Info("job lookup")

	if uc.cache != nil {
		var (
			cached string
			miss   bool
		)
		// a miss is an answer, not a failure: keep it out of retry.Do
		err := retry.Do(ctx, uc.logger, uc.policy, "cache.get.job", requestID, func() error {
			value, err := uc.cache.Get(ctx, jobCacheKey(requestID))
			if errors.Is(err, ErrCacheMiss) {
				miss = true
				return nil
			}
			if err != nil {
				return err
			}
			cached = value
			return nil
		})
		switch {
		case err != nil:
			opLogger.Warn("failed to read cache", zap.Error(err))
		case !miss:
			var job repository.ColorizationJob
			decodeErr := json.Unmarshal([]byte(cached), &job)
			if decodeErr == nil {
				return &job, nil
			}
			opLogger.Warn("failed to decode cached job", zap.Error(decodeErr))
		}
	}

	if uc.repo == nil {
		return nil, ErrCacheMiss
	}
	return uc.repo.FindByRequestID(ctx, requestID)
}

// withSubject tags admin lookups with the caller's token subject.
func withSubject(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if subject, ok := auth.Subject(ctx); ok {
		return logger.With(zap.String("subject", subject))
	}
	return logger
}
