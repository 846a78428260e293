package colorize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Head evaluates the layers after LogitsLayer with the parameters rebuilt
// from the cluster table:
//
//	conv8_313_rh   scale every bin by rebalance[k]
//	class8_313_rh  softmax over the 313 bins
//	class8_ab      1x1 projection of the distribution onto the ab centers
type Head struct {
	kernel    *mat.Dense // (2, 313, 1, 1) stored as 2x313
	rebalance []float64  // (1, 313)
}

// NewHead builds the head from a ClusterCount x 2 cluster table.
func NewHead(centers mat.Matrix) (*Head, error) {
	if r, c := centers.Dims(); r != ClusterCount || c != 2 {
		return nil, fmt.Errorf("cluster table is %dx%d, want %dx2", r, c, ClusterCount)
	}

	rebalance := make([]float64, ClusterCount)
	for i := range rebalance {
		rebalance[i] = RebalanceFactor
	}

	return &Head{
		kernel:    mat.DenseCopyOf(centers.T()),
		rebalance: rebalance,
	}, nil
}

// Decode turns conv8_313 logits, laid out as (313, height, width), into
// interleaved (height, width, 2) ab values.
func (h *Head) Decode(logits []float32, height, width int) ([]float32, error) {
	n := height * width
	if n <= 0 || len(logits) != ClusterCount*n {
		return nil, fmt.Errorf("logits length %d does not match %dx%dx%d", len(logits), ClusterCount, height, width)
	}

	probs := mat.NewDense(ClusterCount, n, nil)
	col := make([]float64, ClusterCount)
	for p := 0; p < n; p++ {
		for k := range col {
			col[k] = h.rebalance[k] * float64(logits[k*n+p])
		}
		lse := floats.LogSumExp(col)
		for k := range col {
			col[k] = math.Exp(col[k] - lse)
		}
		probs.SetCol(p, col)
	}

	var ab mat.Dense
	ab.Mul(h.kernel, probs)

	out := make([]float32, 2*n)
	for p := 0; p < n; p++ {
		out[2*p] = float32(ab.At(0, p))
		out[2*p+1] = float32(ab.At(1, p))
	}
	return out, nil
}
