package colorize

import (
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// LoadClusterCenters reads the ab cluster-center table from a .npy file.
// The array must be two dimensional with ClusterCount rows and 2 columns;
// integer and floating point dtypes are accepted.
func LoadClusterCenters(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	centers, err := ReadClusterCenters(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return centers, nil
}

// ReadClusterCenters is LoadClusterCenters over an already open stream.
func ReadClusterCenters(r io.Reader) (*mat.Dense, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}

	shape := npy.Header.Descr.Shape
	if len(shape) != 2 || shape[0] != ClusterCount || shape[1] != 2 {
		return nil, fmt.Errorf("cluster table has shape %v, want [%d 2]", shape, ClusterCount)
	}

	values, err := readFloat64s(npy)
	if err != nil {
		return nil, err
	}

	if npy.Header.Descr.Fortran {
		// column-major on disk: 313 a values followed by 313 b values
		t := mat.NewDense(2, ClusterCount, values)
		return mat.DenseCopyOf(t.T()), nil
	}
	return mat.NewDense(ClusterCount, 2, values), nil
}

func readFloat64s(npy *npyio.Reader) ([]float64, error) {
	switch dtype := npy.Header.Descr.Type; dtype {
	case "<f8", "f8", "float64":
		var v []float64
		if err := npy.Read(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "<f4", "f4", "float32":
		var v []float32
		if err := npy.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "<i8", "i8", "int64":
		var v []int64
		if err := npy.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "<i4", "i4", "int32":
		var v []int32
		if err := npy.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	default:
		return nil, fmt.Errorf("unsupported cluster table dtype %q", dtype)
	}
}

func widen[T int32 | int64 | float32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
