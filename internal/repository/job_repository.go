package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/colorize/internal/retry"
)

// ErrJobNotFound is returned when no job was recorded for a request id.
var ErrJobNotFound = errors.New("colorization job not found")

// ColorizationJob is the persisted record of one /colorize request.
type ColorizationJob struct {
	ID           uint      `gorm:"primaryKey"`
	RequestID    string    `gorm:"column:request_id;uniqueIndex;size:64"`
	OriginalName string    `gorm:"column:original_name;size:255"`
	InputFile    string    `gorm:"column:input_file;size:128"`
	OutputFile   string    `gorm:"column:output_file;size:128"`
	UploadSize   int64     `gorm:"column:upload_size"`
	SHA1Hash     string    `gorm:"column:sha1_hash;size:40;index"`
	Success      bool      `gorm:"column:success"`
	ExitCode     int       `gorm:"column:exit_code"`
	Error        string    `gorm:"column:error;type:text"`
	LatencyMs    int64     `gorm:"column:latency_ms"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (ColorizationJob) TableName() string {
	return "colorization_jobs"
}

// MetricsAggregation holds the raw aggregates behind the metrics summary.
type MetricsAggregation struct {
	TotalCount       int64
	SuccessCount     int64
	AverageLatencyMs float64
}

// JobRepository provides persistence APIs for colorization jobs.
type JobRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewJobRepository creates a new repository instance.
func NewJobRepository(db *gorm.DB, logger *zap.Logger) *JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger.Named("job_repository"),
		policy: retry.DefaultPolicy,
	}
}

// AutoMigrate ensures the schema is available.
func (r *JobRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ColorizationJob{})
}

// SaveJob persists a job record.
func (r *JobRepository) SaveJob(ctx context.Context, job *ColorizationJob) error {
	return r.executeWithRetry(ctx, "repository.save_job", job.RequestID, func() error {
		return r.db.WithContext(ctx).Create(job).Error
	})
}

// FindByRequestID retrieves the job recorded for a request.
func (r *JobRepository) FindByRequestID(ctx context.Context, requestID string) (*ColorizationJob, error) {
	var job ColorizationJob
	err := r.executeWithRetry(ctx, "repository.find_job", requestID, func() error {
		return r.db.WithContext(ctx).First(&job, "request_id = ?", requestID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, requestID)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// AggregateMetrics computes totals over every recorded job.
func (r *JobRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var row struct {
		Total      int64
		Successes  int64
		AvgLatency float64
	}
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&ColorizationJob{}).
			Select("COUNT(*) AS total, " +
				"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successes, " +
				"COALESCE(AVG(latency_ms), 0) AS avg_latency").
			Scan(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &MetricsAggregation{
		TotalCount:       row.Total,
		SuccessCount:     row.Successes,
		AverageLatencyMs: row.AvgLatency,
	}, nil
}

func (r *JobRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return retry.Do(ctx, r.logger, r.policy, operation, requestID, fn)
}
