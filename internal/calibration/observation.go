package calibration

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var (
	defaultSourceOnce sync.Once
	defaultSource     *rand.Rand
)

// DefaultSource returns the process-wide random source used by
// SampleObservationDefault. It is created once, seeded from the clock,
// and reused for the lifetime of the process. Like any *rand.Rand it is
// not safe for concurrent use; callers sharing it across goroutines must
// serialize access.
func DefaultSource() *rand.Rand {
	defaultSourceOnce.Do(func() {
		defaultSource = rand.New(rand.NewSource(time.Now().UnixNano()))
	})
	return defaultSource
}

// ReseedDefaultSource reseeds the process-wide random source, making
// subsequent default-source draws reproducible.
func ReseedDefaultSource(seed int64) {
	DefaultSource().Seed(seed)
}

// SampleObservation draws one row uniformly from the observation table
// and returns it as a copy; mutating the result does not affect the
// table. Each row of the table is one independent realization of the
// observed quantity.
func SampleObservation(rng *rand.Rand, table mat.Matrix) (*mat.VecDense, error) {
	const op = "SampleObservation"

	if rng == nil {
		return nil, NewError(KindShape, "random source must not be nil").
			WithComponent("calibration").WithOperation(op)
	}
	if table == nil {
		return nil, NewError(KindShape, "observation table must not be nil").
			WithComponent("calibration").WithOperation(op)
	}
	rows, cols := table.Dims()
	if rows == 0 || cols == 0 {
		return nil, NewError(KindShape, "observation table must not be empty").
			WithComponent("calibration").WithOperation(op)
	}

	idx := rng.Intn(rows)
	row := mat.NewVecDense(cols, nil)
	for j := 0; j < cols; j++ {
		row.SetVec(j, table.At(idx, j))
	}

	logger().Debug("Sampled observation row",
		zap.Int("row", idx),
		zap.Int("rows", rows),
	)

	return row, nil
}

// SampleObservationSeeded reseeds rng before drawing, making the draw
// reproducible across runs for a given seed.
func SampleObservationSeeded(rng *rand.Rand, table mat.Matrix, seed int64) (*mat.VecDense, error) {
	const op = "SampleObservationSeeded"

	if rng == nil {
		return nil, NewError(KindShape, "random source must not be nil").
			WithComponent("calibration").WithOperation(op)
	}
	rng.Seed(seed)
	return SampleObservation(rng, table)
}

// SampleObservationDefault draws from the process-wide default source.
func SampleObservationDefault(table mat.Matrix) (*mat.VecDense, error) {
	return SampleObservation(DefaultSource(), table)
}

// PerturbObservations builds an observation table of n noisy realizations
// of y: each row is y + L z with z standard normal and L the Cholesky
// factor of the noise covariance. A covariance that fails to factorize is
// first repaired with CorrectToPositiveDefinite and DefaultPosDefTol.
func PerturbObservations(y []float64, cov mat.Symmetric, n int, rng *rand.Rand) (*mat.Dense, error) {
	const op = "PerturbObservations"

	if rng == nil {
		return nil, NewError(KindShape, "random source must not be nil").
			WithComponent("calibration").WithOperation(op)
	}
	if n <= 0 {
		return nil, NewErrorf(KindDomain, "sample count must be positive, got %d", n).
			WithComponent("calibration").WithOperation(op)
	}
	if cov == nil {
		return nil, NewError(KindShape, "noise covariance must not be nil").
			WithComponent("calibration").WithOperation(op)
	}
	d := len(y)
	if cr, _ := cov.Dims(); cr != d {
		return nil, NewErrorf(KindShape, "covariance is %dx%d but observation has length %d", cr, cr, d).
			WithComponent("calibration").WithOperation(op)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		repaired, err := CorrectToPositiveDefinite(cov, DefaultPosDefTol)
		if err != nil {
			return nil, WrapError(err, "noise covariance is not positive definite and could not be repaired").
				WithComponent("calibration").WithOperation(op)
		}
		if ok := chol.Factorize(repaired); !ok {
			return nil, NewError(KindComputation, "repaired covariance failed Cholesky factorization").
				WithComponent("calibration").WithOperation(op)
		}
	}

	var l mat.TriDense
	chol.LTo(&l)

	table := mat.NewDense(n, d, nil)
	z := mat.NewVecDense(d, nil)
	lz := mat.NewVecDense(d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			z.SetVec(j, rng.NormFloat64())
		}
		lz.MulVec(&l, z)
		for j := 0; j < d; j++ {
			table.Set(i, j, y[j]+lz.AtVec(j))
		}
	}

	return table, nil
}
