package calibration

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestToZScoreVecKnownValues(t *testing.T) {
	z, err := ToZScoreVec([]float64{3, 5, 7}, []float64{1, 1, 1}, []float64{2, 2, 2})
	require.NoError(t, err)
	assertFloat64SlicesEqual(t, z, []float64{1, 2, 3}, 1e-12)

	x, err := FromZScoreVec([]float64{1, 2, 3}, []float64{1, 1, 1}, []float64{2, 2, 2})
	require.NoError(t, err)
	assertFloat64SlicesEqual(t, x, []float64{3, 5, 7}, 1e-12)
}

func TestZScoreVecRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	x := make([]float64, 20)
	mean := make([]float64, 20)
	std := make([]float64, 20)
	for i := range x {
		x[i] = rng.NormFloat64() * 10
		mean[i] = rng.NormFloat64()
		std[i] = 0.5 + rng.Float64()*5
	}

	z, err := ToZScoreVec(x, mean, std)
	require.NoError(t, err)
	back, err := FromZScoreVec(z, mean, std)
	require.NoError(t, err)
	assertFloat64SlicesEqual(t, back, x, 1e-10)
}

func TestZScoreMatrixColumnwise(t *testing.T) {
	// Two features along columns, three samples along rows.
	x := mat.NewDense(3, 2, []float64{
		3, 10,
		5, 20,
		7, 30,
	})
	mean := []float64{1, 10}
	std := []float64{2, 10}

	z, err := ToZScore(x, mean, std)
	require.NoError(t, err)
	assertMatEqual(t, z, mat.NewDense(3, 2, []float64{
		1, 0,
		2, 1,
		3, 2,
	}), 1e-12)

	// Input must not be mutated.
	assert.Equal(t, 3.0, x.At(0, 0))

	back, err := FromZScore(z, mean, std)
	require.NoError(t, err)
	assertMatEqual(t, back, x, 1e-12)
}

func TestZScoreMatrixRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	x := generateRandomMatrix(rng, 8, 5, -100, 100)

	mean := make([]float64, 5)
	std := make([]float64, 5)
	for j := range mean {
		mean[j] = rng.NormFloat64() * 3
		std[j] = 0.1 + rng.Float64()*10
	}

	z, err := ToZScore(x, mean, std)
	require.NoError(t, err)
	back, err := FromZScore(z, mean, std)
	require.NoError(t, err)
	assertMatEqual(t, back, x, 1e-9)
}

func TestZScoreErrors(t *testing.T) {
	t.Run("zero std fails fast", func(t *testing.T) {
		_, err := ToZScoreVec([]float64{1, 2}, []float64{0, 0}, []float64{1, 0})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain), "zero std should be a domain error, not inf/NaN output")
	})

	t.Run("zero std on inverse", func(t *testing.T) {
		_, err := FromZScoreVec([]float64{1, 2}, []float64{0, 0}, []float64{0, 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := ToZScoreVec([]float64{1, 2, 3}, []float64{0, 0}, []float64{1, 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))
	})

	t.Run("matrix column mismatch", func(t *testing.T) {
		x := mat.NewDense(2, 3, nil)
		_, err := ToZScore(x, []float64{0, 0}, []float64{1, 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))
	})
}

func TestFitStandardization(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	mean, std := FitStandardization(x)
	assertFloat64SlicesEqual(t, mean, []float64{2.5, 25}, 1e-12)
	require.Len(t, std, 2)
	assert.InDelta(t, 1.2909944487358056, std[0], 1e-12)

	// Fitted parameters standardize the data to zero column means.
	z, err := ToZScore(x, mean, std)
	require.NoError(t, err)
	zMean, _ := FitStandardization(z)
	assertFloat64SlicesEqual(t, zMean, []float64{0, 0}, 1e-12)
}
