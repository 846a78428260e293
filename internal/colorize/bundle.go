package colorize

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// Model Bundle file names and format constants.
const (
	TopologyFile = "colorization_deploy_v2.prototxt"
	WeightsFile  = "colorization_release_v2.caffemodel"
	PointsFile   = "pts_in_hull.npy"

	// ClusterCount is the number of quantized ab bins the network predicts.
	ClusterCount = 313
	// RebalanceFactor fills the conv8_313_rh scale tensor.
	RebalanceFactor = 2.606

	ChromaLayer    = "class8_ab"
	RebalanceLayer = "conv8_313_rh"
	LogitsLayer    = "conv8_313"

	// InputSize is the side of the square L input the network expects.
	InputSize = 224
	// LuminanceMean is subtracted from L before inference.
	LuminanceMean = 50
)

// BundlePaths are the three Model Bundle files inside one directory.
type BundlePaths struct {
	Topology string
	Weights  string
	Points   string
}

// PathsIn returns the conventional bundle paths inside dir.
func PathsIn(dir string) BundlePaths {
	return BundlePaths{
		Topology: filepath.Join(dir, TopologyFile),
		Weights:  filepath.Join(dir, WeightsFile),
		Points:   filepath.Join(dir, PointsFile),
	}
}

// CheckBundle verifies that topology, weights and cluster table exist, in
// that order, and returns a *MissingArtifactError for the first one that
// does not.
func CheckBundle(dir string) (BundlePaths, error) {
	paths := PathsIn(dir)
	for _, p := range []string{paths.Topology, paths.Weights, paths.Points} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return paths, &MissingArtifactError{Path: p}
			}
			return paths, fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return paths, nil
}

// Bundle is a loaded network together with its reconstructed head. A Bundle
// is not safe for concurrent use.
type Bundle struct {
	net  gocv.Net
	head *Head
}

// LoadBundle checks and loads the Model Bundle in dir.
func LoadBundle(dir string) (*Bundle, error) {
	paths, err := CheckBundle(dir)
	if err != nil {
		return nil, err
	}

	centers, err := LoadClusterCenters(paths.Points)
	if err != nil {
		return nil, fmt.Errorf("load cluster centers: %w", err)
	}
	head, err := NewHead(centers)
	if err != nil {
		return nil, err
	}

	prototxt, err := os.ReadFile(paths.Topology)
	if err != nil {
		return nil, err
	}
	prototxt, err = PrepareTopology(prototxt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paths.Topology, err)
	}
	weights, err := os.ReadFile(paths.Weights)
	if err != nil {
		return nil, err
	}

	net, err := gocv.ReadNetFromCaffeBytes(prototxt, weights)
	if err != nil {
		return nil, fmt.Errorf("read caffe network: %w", err)
	}
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("read caffe network: empty network from %s", dir)
	}

	return &Bundle{net: net, head: head}, nil
}

// Close releases the network.
func (b *Bundle) Close() error {
	return b.net.Close()
}

// Predict runs the network on a mean-centered InputSize x InputSize L plane
// and returns the ab prediction as a two channel float32 Mat at the
// network's output resolution.
func (b *Bundle) Predict(l gocv.Mat) (gocv.Mat, error) {
	blob := gocv.BlobFromImage(l, 1.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	b.net.SetInput(blob, "")
	logits := b.net.Forward(LogitsLayer)
	defer logits.Close()

	dims := logits.Size()
	if len(dims) != 4 || dims[0] != 1 || dims[1] != ClusterCount {
		return gocv.NewMat(), fmt.Errorf("%s output has shape %v, want [1 %d h w]", LogitsLayer, dims, ClusterCount)
	}
	height, width := dims[2], dims[3]

	data, err := logits.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("read %s output: %w", LogitsLayer, err)
	}
	ab, err := b.head.Decode(data, height, width)
	if err != nil {
		return gocv.NewMat(), err
	}

	return newFloatMat(height, width, gocv.MatTypeCV32FC2, ab)
}

func newFloatMat(rows, cols int, mt gocv.MatType, values []float32) (gocv.Mat, error) {
	m := gocv.NewMatWithSize(rows, cols, mt)
	dst, err := m.DataPtrFloat32()
	if err != nil {
		m.Close()
		return gocv.NewMat(), err
	}
	if len(dst) != len(values) {
		m.Close()
		return gocv.NewMat(), fmt.Errorf("mat holds %d values, got %d", len(dst), len(values))
	}
	copy(dst, values)
	return m, nil
}
