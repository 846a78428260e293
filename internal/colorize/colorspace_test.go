package colorize

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// syntheticBGR returns a rows x cols 8-bit BGR gradient with strong color.
func syntheticBGR(t *testing.T, rows, cols int) gocv.Mat {
	t.Helper()
	data := make([]byte, rows*cols*3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := (y*cols + x) * 3
			data[i] = uint8(x * 255 / cols)
			data[i+1] = uint8(y * 255 / rows)
			data[i+2] = uint8((x + y) * 97 % 256)
		}
	}
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, data)
	if err != nil {
		t.Fatalf("new mat: %v", err)
	}
	return m
}

func TestForceGrayscaleEqualChannels(t *testing.T) {
	src := syntheticBGR(t, 20, 30)
	defer src.Close()

	gray, err := ForceGrayscale(src)
	if err != nil {
		t.Fatalf("force grayscale: %v", err)
	}
	defer gray.Close()

	if gray.Channels() != 3 || gray.Rows() != 20 || gray.Cols() != 30 {
		t.Fatalf("unexpected shape %dx%dx%d", gray.Rows(), gray.Cols(), gray.Channels())
	}
	px := gray.ToBytes()
	for i := 0; i < len(px); i += 3 {
		if px[i] != px[i+1] || px[i] != px[i+2] {
			t.Fatalf("pixel %d is not gray: %v", i/3, px[i:i+3])
		}
	}
}

func TestForceGrayscaleIsIdempotent(t *testing.T) {
	color := syntheticBGR(t, 16, 16)
	defer color.Close()

	once, err := ForceGrayscale(color)
	if err != nil {
		t.Fatalf("force grayscale: %v", err)
	}
	defer once.Close()

	twice, err := ForceGrayscale(once)
	if err != nil {
		t.Fatalf("force grayscale: %v", err)
	}
	defer twice.Close()

	a, b := once.ToBytes(), twice.ToBytes()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("byte %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

// solidBGR returns a rows x cols image filled with one BGR color.
func solidBGR(t *testing.T, rows, cols int, b, g, r byte) gocv.Mat {
	t.Helper()
	data := make([]byte, rows*cols*3)
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = b, g, r
	}
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, data)
	if err != nil {
		t.Fatalf("new mat: %v", err)
	}
	return m
}

func TestColorIsDiscardedBeforeLab(t *testing.T) {
	// all four have a luma of 100 under the BT.601 weights
	colors := []struct {
		name    string
		b, g, r byte
	}{
		{"gray", 100, 100, 100},
		{"orange", 0, 43, 250},
		{"green", 7, 169, 0},
		{"blue", 249, 122, 0},
	}

	var reference []float32
	for _, c := range colors {
		src := solidBGR(t, 6, 9, c.b, c.g, c.r)
		gray, err := ForceGrayscale(src)
		src.Close()
		if err != nil {
			t.Fatalf("%s: force grayscale: %v", c.name, err)
		}
		for i, v := range gray.ToBytes() {
			if v != 100 {
				gray.Close()
				t.Fatalf("%s: byte %d is %d, want 100", c.name, i, v)
			}
		}

		lab := ToLab(gray)
		gray.Close()
		values, err := lab.DataPtrFloat32()
		if err != nil {
			lab.Close()
			t.Fatalf("%s: lab data: %v", c.name, err)
		}

		l := make([]float32, 0, len(values)/3)
		for i := 0; i < len(values); i += 3 {
			l = append(l, values[i])
			if math.Abs(float64(values[i+1])) > 1e-3 || math.Abs(float64(values[i+2])) > 1e-3 {
				lab.Close()
				t.Fatalf("%s: pixel %d has chroma a=%v b=%v", c.name, i/3, values[i+1], values[i+2])
			}
		}
		lab.Close()

		if reference == nil {
			reference = l
			continue
		}
		for i := range l {
			if l[i] != reference[i] {
				t.Fatalf("%s: L[%d] = %v, gray input gave %v", c.name, i, l[i], reference[i])
			}
		}
	}
}

func TestForceGrayscaleSingleChannel(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(77, 0, 0, 0), 4, 5, gocv.MatTypeCV8UC1)
	defer src.Close()

	out, err := ForceGrayscale(src)
	if err != nil {
		t.Fatalf("force grayscale: %v", err)
	}
	defer out.Close()

	if out.Channels() != 3 {
		t.Fatalf("expected 3 channels, got %d", out.Channels())
	}
	for _, v := range out.ToBytes() {
		if v != 77 {
			t.Fatalf("expected 77 everywhere, got %d", v)
		}
	}
}

func TestLuminanceInputShapeAndCentering(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 37, 61, gocv.MatTypeCV8UC3)
	defer src.Close()

	lab := ToLab(src)
	defer lab.Close()
	l := LuminanceInput(lab)
	defer l.Close()

	if l.Rows() != InputSize || l.Cols() != InputSize || l.Channels() != 1 {
		t.Fatalf("unexpected L input %dx%dx%d", l.Rows(), l.Cols(), l.Channels())
	}
	// white has L=100, so the centered value is 50
	if v := l.GetFloatAt(100, 100); math.Abs(float64(v)-50) > 0.05 {
		t.Fatalf("expected 50 after centering, got %v", v)
	}
}

func TestReconstructWithZeroChromaReproducesGray(t *testing.T) {
	src := syntheticBGR(t, 37, 61)
	defer src.Close()

	gray, err := ForceGrayscale(src)
	if err != nil {
		t.Fatalf("force grayscale: %v", err)
	}
	defer gray.Close()

	lab := ToLab(gray)
	defer lab.Close()

	ab := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 56, 56, gocv.MatTypeCV32FC2)
	defer ab.Close()

	out, err := Reconstruct(lab, ab)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	defer out.Close()

	if out.Rows() != 37 || out.Cols() != 61 || out.Channels() != 3 {
		t.Fatalf("output %dx%dx%d does not match input 37x61x3", out.Rows(), out.Cols(), out.Channels())
	}

	want, got := gray.ToBytes(), out.ToBytes()
	for i := range want {
		if d := int(want[i]) - int(got[i]); d > 2 || d < -2 {
			t.Fatalf("byte %d: got %d, want %d (+-2)", i, got[i], want[i])
		}
	}
}

func TestReconstructClipsOvershoot(t *testing.T) {
	lab := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(95, 0, 0, 0), 8, 8, gocv.MatTypeCV32FC3)
	defer lab.Close()
	// strong green, outside the sRGB gamut: red and blue go negative, green above 1
	ab := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(-120, 120, 0, 0), 2, 2, gocv.MatTypeCV32FC2)
	defer ab.Close()

	out, err := Reconstruct(lab, ab)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	defer out.Close()

	if out.Type() != gocv.MatTypeCV8UC3 {
		t.Fatalf("expected 8UC3 output, got %v", out.Type())
	}
	px := out.ToBytes()
	if px[1] != 255 {
		t.Fatalf("expected green clipped to 255, got %d", px[1])
	}
	if px[2] > 5 {
		t.Fatalf("expected red clipped near 0, got %d", px[2])
	}
}

func TestReconstructRejectsWrongChannels(t *testing.T) {
	lab := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 0, 0, 0), 4, 4, gocv.MatTypeCV32FC3)
	defer lab.Close()
	ab := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV32FC3)
	defer ab.Close()

	if _, err := Reconstruct(lab, ab); err == nil {
		t.Fatal("expected error for 3-channel ab")
	}
}

func TestColorizeFileUnreadableImage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(input, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	output := filepath.Join(dir, "out.jpg")

	c := NewColorizer(&Bundle{}, zap.NewNop())
	err := c.ColorizeFile(input, output)
	if ExitCode(err) != ExitUnreadableImage {
		t.Fatalf("expected unreadable image error, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err=%v", statErr)
	}
}

// TestColorizeFileWithModel needs a real Model Bundle in COLORIZE_MODELS_DIR.
func TestColorizeFileWithModel(t *testing.T) {
	modelsDir := os.Getenv("COLORIZE_MODELS_DIR")
	if modelsDir == "" {
		t.Skip("COLORIZE_MODELS_DIR not set")
	}

	bundle, err := LoadBundle(modelsDir)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	defer bundle.Close()

	dir := t.TempDir()
	src := syntheticBGR(t, 90, 140)
	defer src.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	input := filepath.Join(dir, "gray.jpg")
	if !gocv.IMWrite(input, gray) {
		t.Fatal("write input jpeg")
	}

	output := filepath.Join(dir, "color.jpg")
	if err := NewColorizer(bundle, zap.NewNop()).ColorizeFile(input, output); err != nil {
		t.Fatalf("colorize: %v", err)
	}

	out := gocv.IMRead(output, gocv.IMReadUnchanged)
	defer out.Close()
	if out.Empty() {
		t.Fatal("output is not a readable image")
	}
	if out.Rows() != 90 || out.Cols() != 140 || out.Channels() != 3 {
		t.Fatalf("output %dx%dx%d, want 90x140x3", out.Rows(), out.Cols(), out.Channels())
	}

	l := gocv.NewMatWithSize(InputSize, InputSize, gocv.MatTypeCV32F)
	defer l.Close()
	ab, err := bundle.Predict(l)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	defer ab.Close()
	if ab.Channels() != 2 || ab.Size()[0] != InputSize/4 {
		t.Fatalf("unexpected prediction shape %v x%d", ab.Size(), ab.Channels())
	}
}
