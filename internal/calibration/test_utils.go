package calibration

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// assertMatDimsEqual checks if two matrices have the same dimensions
func assertMatDimsEqual(t *testing.T, got, want mat.Matrix) {
	t.Helper()

	rg, cg := got.Dims()
	rw, cw := want.Dims()

	if rg != rw || cg != cw {
		t.Fatalf("matrix dimensions mismatch: got %dx%d, want %dx%d", rg, cg, rw, cw)
	}
}

// assertMatEqual checks if two matrices are approximately equal
func assertMatEqual(t *testing.T, got, want mat.Matrix, tol float64) {
	t.Helper()

	assertMatDimsEqual(t, got, want)

	r, c := got.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			g := got.At(i, j)
			w := want.At(i, j)
			if math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}

// generateRandomMatrix generates a random matrix with values in [min, max]
func generateRandomMatrix(rng *rand.Rand, rows, cols int, min, max float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = min + rng.Float64()*(max-min)
	}
	return mat.NewDense(rows, cols, data)
}

// historyWithIterations builds an EnsembleHistory with n data-bearing
// iterations plus one trailing parameter-only iteration, mimicking the
// bookkeeping of the external ensemble-update process. Entry values
// encode (iteration, row, member) so tests can check ordering.
func historyWithIterations(t *testing.T, n, paramDims, outputDims, members int) *EnsembleHistory {
	t.Helper()

	h, err := NewEnsembleHistory(members)
	if err != nil {
		t.Fatalf("failed to create history: %v", err)
	}

	for i := 1; i <= n; i++ {
		u := mat.NewDense(paramDims, members, nil)
		g := mat.NewDense(outputDims, members, nil)
		for r := 0; r < paramDims; r++ {
			for m := 0; m < members; m++ {
				u.Set(r, m, float64(i*1000+r*100+m))
			}
		}
		for r := 0; r < outputDims; r++ {
			for m := 0; m < members; m++ {
				g.Set(r, m, -float64(i*1000+r*100+m))
			}
		}
		if err := h.AppendParameters(u); err != nil {
			t.Fatalf("failed to append parameters at iteration %d: %v", i, err)
		}
		if err := h.AppendOutputs(g); err != nil {
			t.Fatalf("failed to append outputs at iteration %d: %v", i, err)
		}
	}

	// Trailing parameter ensemble without outputs, as left behind by the
	// final iteration of the update process.
	final := mat.NewDense(paramDims, members, nil)
	if err := h.AppendParameters(final); err != nil {
		t.Fatalf("failed to append final parameters: %v", err)
	}

	return h
}
