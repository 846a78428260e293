package handlers

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/example/colorize/internal/repository"
	"github.com/example/colorize/internal/storage"
	"github.com/example/colorize/internal/usecase"
)

// MaxUploadSize caps the size of a /colorize request body.
const MaxUploadSize = 10 << 20

//go:embed web/index.html
var indexPage []byte

// Service is the colorization use case as seen by the HTTP layer.
type Service interface {
	Colorize(ctx context.Context, originalName string, src io.Reader) (*usecase.Outcome, error)
	GetJob(ctx context.Context, requestID string) (*repository.ColorizationJob, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// RouteConfig carries what RegisterRoutes needs besides the service.
type RouteConfig struct {
	UploadDir  string
	ResultsDir string
	// LedgerEnabled registers the job and metrics routes.
	LedgerEnabled bool
	// AdminAuth guards the job and metrics routes when non-nil.
	AdminAuth gin.HandlerFunc
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Service, cfg RouteConfig) {
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.UploadDir != "" {
		router.Static(storage.UploadsURLPrefix, cfg.UploadDir)
	}
	if cfg.ResultsDir != "" {
		router.Static(storage.ResultsURLPrefix, cfg.ResultsDir)
	}

	router.POST("/colorize", colorizeHandler(svc))

	if !cfg.LedgerEnabled {
		return
	}

	admin := router.Group("/")
	if cfg.AdminAuth != nil {
		admin.Use(cfg.AdminAuth)
	}

	admin.GET("/jobs/:id", func(c *gin.Context) {
		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		job, err := svc.GetJob(c.Request.Context(), requestID)
		if err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":    job.RequestID,
			"original_name": job.OriginalName,
			"input_file":    job.InputFile,
			"output_file":   job.OutputFile,
			"upload_size":   job.UploadSize,
			"sha1":          job.SHA1Hash,
			"success":       job.Success,
			"exit_code":     job.ExitCode,
			"error":         job.Error,
			"latency_ms":    job.LatencyMs,
			"created_at":    job.CreatedAt,
		})
	})

	admin.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			if errors.Is(err, usecase.ErrLedgerDisabled) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// formError is a client input problem reported verbatim to the page.
type formError string

func (e formError) Error() string { return string(e) }

const (
	errNoImage    formError = "No image provided"
	errNoFilename formError = "No image selected"
)

func colorizeHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
		reader, err := c.Request.MultipartReader()
		if err != nil {
			// not a multipart body at all, so there is no image field
			c.JSON(http.StatusOK, failure(errNoImage.Error()))
			return
		}

		image, err := readImagePart(reader)
		switch {
		case isTooLarge(err):
			c.JSON(http.StatusRequestEntityTooLarge, failure("Image exceeds the 10MB upload limit"))
			return
		case err != nil:
			c.JSON(http.StatusOK, failure(err.Error()))
			return
		}

		outcome, err := svc.Colorize(c.Request.Context(), image.filename, bytes.NewReader(image.data))
		if err != nil {
			c.JSON(http.StatusOK, failure(err.Error()))
			return
		}

		if !outcome.Success {
			c.JSON(http.StatusOK, gin.H{
				"success":   false,
				"error":     outcome.Error,
				"requestId": outcome.RequestID,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"originalImageUrl":  outcome.OriginalImageURL,
			"colorizedImageUrl": outcome.ColorizedImageURL,
			"requestId":         outcome.RequestID,
		})
	}
}

type imagePart struct {
	filename string
	data     []byte
}

// readImagePart returns the first "image" part that carries a filename
// parameter. Parts without one are form values, not files, and are skipped.
// A filename parameter that is present but empty is errNoFilename.
func readImagePart(reader *multipart.Reader) (*imagePart, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoImage
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != "image" {
			continue
		}

		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil {
			return nil, err
		}
		filename, isFile := params["filename"]
		if !isFile {
			continue
		}
		if filename == "" {
			return nil, errNoFilename
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, err
		}
		return &imagePart{filename: filepath.Base(filename), data: data}, nil
	}
}

func failure(message string) gin.H {
	return gin.H{"success": false, "error": message}
}

func isTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrJobNotFound) ||
		errors.Is(err, usecase.ErrCacheMiss) ||
		errors.Is(err, usecase.ErrLedgerDisabled)
}
