package colorize

import (
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Colorizer runs the full pipeline with one loaded Bundle.
type Colorizer struct {
	bundle *Bundle
	logger *zap.Logger
}

// NewColorizer wraps a loaded bundle.
func NewColorizer(bundle *Bundle, logger *zap.Logger) *Colorizer {
	return &Colorizer{bundle: bundle, logger: logger}
}

// Colorize returns an 8-bit BGR image of the same size as src. Any color in
// src is discarded first.
func (c *Colorizer) Colorize(src gocv.Mat) (gocv.Mat, error) {
	gray, err := ForceGrayscale(src)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer gray.Close()

	lab := ToLab(gray)
	defer lab.Close()

	l := LuminanceInput(lab)
	defer l.Close()

	ab, err := c.bundle.Predict(l)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer ab.Close()

	return Reconstruct(lab, ab)
}

// ColorizeFile reads inputPath, colorizes it and writes outputPath. The
// output format follows the extension of outputPath. Nothing is written
// unless every step succeeds.
func (c *Colorizer) ColorizeFile(inputPath, outputPath string) error {
	src := gocv.IMRead(inputPath, gocv.IMReadColor)
	if src.Empty() {
		src.Close()
		return &UnreadableImageError{Path: inputPath}
	}
	defer src.Close()

	c.logger.Info("colorizing image",
		zap.String("image", inputPath),
		zap.Int("width", src.Cols()),
		zap.Int("height", src.Rows()),
	)

	out, err := c.Colorize(src)
	if err != nil {
		return err
	}
	defer out.Close()

	if ok := gocv.IMWrite(outputPath, out); !ok {
		return fmt.Errorf("could not write image to %s", outputPath)
	}
	return nil
}
