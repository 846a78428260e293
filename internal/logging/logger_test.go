package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestCLILoggerSplitsStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := NewCLILogger(&stdout, &stderr)

	logger.Info("loading model", zap.String("models", "/srv/models"))
	logger.Error("model bundle incomplete", zap.String("path", "/srv/models/pts_in_hull.npy"))
	_ = logger.Sync()

	if !strings.Contains(stdout.String(), "loading model") {
		t.Fatalf("expected info entry on stdout, got %q", stdout.String())
	}
	if strings.Contains(stdout.String(), "model bundle incomplete") {
		t.Fatalf("error entry leaked to stdout: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "/srv/models/pts_in_hull.npy") {
		t.Fatalf("expected error entry naming the path on stderr, got %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "loading model") {
		t.Fatalf("info entry leaked to stderr: %q", stderr.String())
	}
}

func TestOperationErrorFormatting(t *testing.T) {
	base := errors.New("disk full")

	err := NewOperationError("storage.save_upload", "req-1", base)
	if got, want := err.Error(), "storage.save_upload (request_id=req-1): disk full"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to reach the wrapped error")
	}

	if got, want := NewOperationError("runner.start", "", base).Error(), "runner.start: disk full"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
	if NewOperationError("noop", "req", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestOperationOf(t *testing.T) {
	err := NewOperationError("usecase.colorize", "req-9", NewOperationError("runner.start", "req-9", errors.New("exec: not found")))

	op, ok := OperationOf(err)
	if !ok || op != "usecase.colorize" {
		t.Fatalf("expected outermost operation, got %q (ok=%v)", op, ok)
	}
	if _, ok := OperationOf(errors.New("plain")); ok {
		t.Fatal("expected no operation on a plain error")
	}
}
