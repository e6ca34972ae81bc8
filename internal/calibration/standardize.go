package calibration

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// checkStandardizationParams validates a (mean, std) pair against the
// expected feature count. A zero std entry is rejected outright rather
// than letting inf or NaN leak into downstream fitting: a zero-variance
// feature indicates a data-collection defect upstream.
func checkStandardizationParams(features int, mean, std []float64, op string) error {
	if len(mean) != features || len(std) != features {
		return NewErrorf(KindShape, "expected mean and std of length %d, got %d and %d",
			features, len(mean), len(std)).
			WithComponent("calibration").WithOperation(op)
	}
	for i, s := range std {
		if s == 0 {
			return NewErrorf(KindDomain, "std[%d] is zero", i).
				WithComponent("calibration").WithOperation(op)
		}
	}
	return nil
}

// ToZScoreVec standardizes a feature vector elementwise:
// z[i] = (x[i] - mean[i]) / std[i]. The result is freshly allocated.
func ToZScoreVec(x, mean, std []float64) ([]float64, error) {
	const op = "ToZScoreVec"

	if err := checkStandardizationParams(len(x), mean, std, op); err != nil {
		return nil, err
	}
	z := make([]float64, len(x))
	for i := range x {
		z[i] = (x[i] - mean[i]) / std[i]
	}
	return z, nil
}

// FromZScoreVec inverts ToZScoreVec: x[i] = z[i]*std[i] + mean[i].
func FromZScoreVec(z, mean, std []float64) ([]float64, error) {
	const op = "FromZScoreVec"

	if err := checkStandardizationParams(len(z), mean, std, op); err != nil {
		return nil, err
	}
	x := make([]float64, len(z))
	for i := range z {
		x[i] = z[i]*std[i] + mean[i]
	}
	return x, nil
}

// ToZScore standardizes a matrix column-wise. Features lie along columns,
// one (mean, std) scalar pair per column; every row of a column is
// transformed by that column's pair. Columns are independent. The input
// is never mutated.
func ToZScore(x mat.Matrix, mean, std []float64) (*mat.Dense, error) {
	const op = "ToZScore"

	r, c := x.Dims()
	if err := checkStandardizationParams(c, mean, std, op); err != nil {
		return nil, err
	}
	z := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			z.Set(i, j, (x.At(i, j)-mean[j])/std[j])
		}
	}
	return z, nil
}

// FromZScore inverts ToZScore column-wise.
func FromZScore(z mat.Matrix, mean, std []float64) (*mat.Dense, error) {
	const op = "FromZScore"

	r, c := z.Dims()
	if err := checkStandardizationParams(c, mean, std, op); err != nil {
		return nil, err
	}
	x := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			x.Set(i, j, z.At(i, j)*std[j]+mean[j])
		}
	}
	return x, nil
}

// FitStandardization computes per-column mean and sample standard
// deviation of x, suitable as parameters for ToZScore. The transform
// functions themselves never compute parameters; callers that already
// hold pipeline-level statistics pass those instead.
func FitStandardization(x mat.Matrix) (mean, std []float64) {
	r, c := x.Dims()
	mean = make([]float64, c)
	std = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			col[i] = x.At(i, j)
		}
		mean[j], std[j] = stat.MeanStdDev(col, nil)
	}
	return mean, std
}
