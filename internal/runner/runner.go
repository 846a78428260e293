// Package runner invokes the colorize command as a child process.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/example/colorize/internal/imageprocessor"
	"github.com/example/colorize/internal/logging"
)

// ProcessClient runs one child process per Colorize call.
type ProcessClient struct {
	command   []string
	env       []string
	modelsDir string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewProcessClient returns a client that execs binary with the models
// directory. A zero timeout lets the child run for as long as it needs.
func NewProcessClient(binary, modelsDir string, timeout time.Duration, logger *zap.Logger) *ProcessClient {
	return &ProcessClient{
		command:   []string{binary},
		modelsDir: modelsDir,
		timeout:   timeout,
		logger:    logger.Named("runner"),
	}
}

// Colorize blocks until the child exits. Output streams are captured, not
// streamed. The caller's cancellation does not reach the child; only the
// configured timeout does.
func (p *ProcessClient) Colorize(ctx context.Context, inputPath, outputPath string) (*imageprocessor.Result, error) {
	runCtx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, p.timeout)
		defer cancel()
	}

	args := append([]string{}, p.command[1:]...)
	args = append(args,
		"--image", inputPath,
		"--output", outputPath,
		"--models", p.modelsDir,
	)
	cmd := exec.CommandContext(runCtx, p.command[0], args...)
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.logger.Debug("colorize finished", zap.String("output", outputPath), zap.Duration("elapsed", elapsed))
		return &imageprocessor.Result{Success: true, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	case errors.As(err, &exitErr):
		if runCtx.Err() != nil {
			stderr.WriteString("colorize killed: " + runCtx.Err().Error() + "\n")
		}
		p.logger.Warn("colorize exited with failure",
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.String("input", inputPath),
			zap.Duration("elapsed", elapsed),
		)
		return &imageprocessor.Result{
			Success:  false,
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}, nil
	default:
		wrapped := logging.NewOperationError("runner.start", "", err)
		p.logger.Error("failed to start colorize", zap.Error(wrapped), zap.String("binary", p.command[0]))
		return nil, wrapped
	}
}
