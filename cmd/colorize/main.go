// Command colorize colorizes one grayscale image with the pretrained Caffe
// colorization network and exits. The server runs it once per upload.
//
//	colorize --image in.jpg --output out.jpg --models ./models
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/example/colorize/internal/colorize"
	"github.com/example/colorize/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("colorize", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	imagePath := flags.StringP("image", "i", "", "path to the input black and white image")
	outputPath := flags.StringP("output", "o", "", "path to save the colorized output image")
	modelsDir := flags.StringP("models", "m", "", "path to the models directory")

	if err := flags.Parse(args); err != nil {
		return colorize.ExitUsage
	}
	required := []struct {
		name  string
		value string
	}{
		{"image", *imagePath},
		{"output", *outputPath},
		{"models", *modelsDir},
	}
	for _, f := range required {
		if f.value == "" {
			fmt.Fprintf(stderr, "Error: required flag --%s not set\n", f.name)
			flags.Usage()
			return colorize.ExitUsage
		}
	}

	logger := logging.NewCLILogger(stdout, stderr)
	defer logger.Sync() //nolint:errcheck

	logger.Info("loading model", zap.String("models", *modelsDir))
	bundle, err := colorize.LoadBundle(*modelsDir)
	if err != nil {
		logger.Error("Error: could not load model bundle", zap.Error(err))
		return colorize.ExitCode(err)
	}
	defer bundle.Close()

	c := colorize.NewColorizer(bundle, logger)
	if err := c.ColorizeFile(*imagePath, *outputPath); err != nil {
		logger.Error("Error: colorization failed", zap.Error(err))
		return colorize.ExitCode(err)
	}

	logger.Info("colorized image saved", zap.String("output", *outputPath))
	return colorize.ExitOK
}
