package calibration

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// DefaultPosDefTol is the default diagonal safety margin used when
// repairing covariance matrices: a small multiple of machine epsilon, so
// corrected matrices are strictly positive-definite rather than
// borderline.
var DefaultPosDefTol = 1e8 * (math.Nextafter(1, 2) - 1)

// CorrectToPositiveDefinite repairs a near-symmetric, possibly indefinite
// matrix into a symmetric positive-definite one. An asymmetric input is
// first symmetrized as 0.5*(a + aT); if the result (or an already
// symmetric input) passes a Cholesky factorization it is returned without
// further perturbation, since floating-point asymmetry is usually the
// only defect. Otherwise every diagonal entry is shifted by
// |min eigenvalue| + tol, which raises the minimum eigenvalue to at
// least tol.
//
// tol must be positive; DefaultPosDefTol is the standard choice for
// covariance repair.
func CorrectToPositiveDefinite(a mat.Matrix, tol float64) (*mat.SymDense, error) {
	const op = "CorrectToPositiveDefinite"

	if a == nil {
		return nil, NewError(KindShape, "input matrix must not be nil").
			WithComponent("calibration").WithOperation(op)
	}
	if tol <= 0 {
		return nil, NewErrorf(KindDomain, "tolerance must be positive, got %g", tol).
			WithComponent("calibration").WithOperation(op)
	}
	r, c := a.Dims()
	if r != c {
		return nil, NewErrorf(KindShape, "input matrix must be square, got %dx%d", r, c).
			WithComponent("calibration").WithOperation(op)
	}

	symmetric := true
	for i := 0; i < r && symmetric; i++ {
		for j := i + 1; j < r; j++ {
			if a.At(i, j) != a.At(j, i) {
				symmetric = false
				break
			}
		}
	}

	out := mat.NewSymDense(r, nil)
	if symmetric {
		for i := 0; i < r; i++ {
			for j := i; j < r; j++ {
				out.SetSym(i, j, a.At(i, j))
			}
		}
	} else {
		for i := 0; i < r; i++ {
			for j := i; j < r; j++ {
				out.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
			}
		}
	}

	if isPosDef(out) {
		return out, nil
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(out, false); !ok {
		return nil, NewError(KindComputation, "eigendecomposition did not converge").
			WithComponent("calibration").WithOperation(op)
	}
	vals := eig.Values(nil)
	minEig := vals[0]
	for _, v := range vals[1:] {
		if v < minEig {
			minEig = v
		}
	}
	nugget := math.Abs(minEig)

	for i := 0; i < r; i++ {
		out.SetSym(i, i, out.At(i, i)+nugget+tol)
	}

	logger().Debug("Corrected matrix to positive definite",
		zap.Int("size", r),
		zap.Bool("was_symmetric", symmetric),
		zap.Float64("min_eigenvalue", minEig),
		zap.Float64("nugget", nugget),
		zap.Float64("tol", tol),
	)

	return out, nil
}

// isPosDef reports whether the matrix admits a Cholesky factorization.
func isPosDef(s *mat.SymDense) bool {
	var chol mat.Cholesky
	return chol.Factorize(s)
}
