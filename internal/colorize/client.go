package colorize

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/colorize/internal/imageprocessor"
)

// LocalClient serves colorization from a bundle loaded once at startup.
// Calls are serialized because an OpenCV network holds per-forward state.
type LocalClient struct {
	mu        sync.Mutex
	bundle    *Bundle
	colorizer *Colorizer
}

// NewLocalClient loads the bundle in modelsDir.
func NewLocalClient(modelsDir string, logger *zap.Logger) (*LocalClient, error) {
	bundle, err := LoadBundle(modelsDir)
	if err != nil {
		return nil, err
	}
	return &LocalClient{
		bundle:    bundle,
		colorizer: NewColorizer(bundle, logger.Named("colorizer")),
	}, nil
}

// Colorize implements imageprocessor.Client. Failures are reported the way
// the colorize command would report them.
func (l *LocalClient) Colorize(ctx context.Context, inputPath, outputPath string) (*imageprocessor.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.colorizer.ColorizeFile(inputPath, outputPath); err != nil {
		return &imageprocessor.Result{
			Success:  false,
			ExitCode: ExitCode(err),
			Stderr:   "Error: " + err.Error() + "\n",
		}, nil
	}
	return &imageprocessor.Result{Success: true}, nil
}

// Close releases the bundle.
func (l *LocalClient) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bundle.Close()
}
