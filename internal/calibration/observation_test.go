package calibration

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func observationTable() *mat.Dense {
	return mat.NewDense(4, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
		7, 8,
	})
}

func TestSampleObservationReturnsTableRow(t *testing.T) {
	table := observationTable()
	rng := rand.New(rand.NewSource(1))

	row, err := SampleObservation(rng, table)
	require.NoError(t, err)
	require.Equal(t, 2, row.Len())

	// The returned vector must be one of the table rows.
	found := false
	for i := 0; i < 4; i++ {
		if row.AtVec(0) == table.At(i, 0) && row.AtVec(1) == table.At(i, 1) {
			found = true
			break
		}
	}
	assert.True(t, found, "sampled row should be a row of the table")
}

func TestSampleObservationReturnsCopy(t *testing.T) {
	table := observationTable()
	rng := rand.New(rand.NewSource(1))

	row, err := SampleObservation(rng, table)
	require.NoError(t, err)

	row.SetVec(0, -999)
	for i := 0; i < 4; i++ {
		assert.NotEqual(t, -999.0, table.At(i, 0), "mutating the sample must not affect the table")
	}
}

func TestSampleObservationSeededIsReproducible(t *testing.T) {
	table := observationTable()

	first, err := SampleObservationSeeded(rand.New(rand.NewSource(99)), table, 42)
	require.NoError(t, err)
	second, err := SampleObservationSeeded(rand.New(rand.NewSource(7)), table, 42)
	require.NoError(t, err)

	// Same reseed value, identical row, regardless of the generators'
	// prior state.
	assertFloat64SlicesEqual(t, first.RawVector().Data, second.RawVector().Data, 0)
}

func TestSampleObservationDefaultSource(t *testing.T) {
	table := observationTable()

	assert.Same(t, DefaultSource(), DefaultSource(), "default source should be a process-wide singleton")

	ReseedDefaultSource(1234)
	first, err := SampleObservationDefault(table)
	require.NoError(t, err)

	ReseedDefaultSource(1234)
	second, err := SampleObservationDefault(table)
	require.NoError(t, err)

	assertFloat64SlicesEqual(t, first.RawVector().Data, second.RawVector().Data, 0)
}

func TestSampleObservationErrors(t *testing.T) {
	t.Run("nil rng", func(t *testing.T) {
		_, err := SampleObservation(nil, observationTable())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))
	})

	t.Run("nil table", func(t *testing.T) {
		_, err := SampleObservation(rand.New(rand.NewSource(1)), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))
	})

	t.Run("empty table", func(t *testing.T) {
		_, err := SampleObservation(rand.New(rand.NewSource(1)), &mat.Dense{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))
	})
}

func TestPerturbObservations(t *testing.T) {
	y := []float64{1, 2, 3}
	cov := mat.NewSymDense(3, []float64{
		0.5, 0.1, 0,
		0.1, 0.5, 0.1,
		0, 0.1, 0.5,
	})

	table, err := PerturbObservations(y, cov, 50, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	rows, cols := table.Dims()
	assert.Equal(t, 50, rows)
	assert.Equal(t, 3, cols)

	// Rows scatter around y.
	for j := 0; j < 3; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += table.At(i, j)
		}
		assert.InDelta(t, y[j], sum/float64(rows), 0.5)
	}
}

func TestPerturbObservationsReproducible(t *testing.T) {
	y := []float64{0, 0}
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	a, err := PerturbObservations(y, cov, 5, rand.New(rand.NewSource(17)))
	require.NoError(t, err)
	b, err := PerturbObservations(y, cov, 5, rand.New(rand.NewSource(17)))
	require.NoError(t, err)
	assertMatEqual(t, a, b, 0)
}

func TestPerturbObservationsRepairsIndefiniteCovariance(t *testing.T) {
	// Indefinite covariance: repaired internally before factorization.
	y := []float64{0, 0}
	cov := mat.NewSymDense(2, []float64{1, 2, 2, 1})

	table, err := PerturbObservations(y, cov, 10, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	rows, cols := table.Dims()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 2, cols)
}

func TestPerturbObservationsErrors(t *testing.T) {
	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := PerturbObservations([]float64{1, 2, 3}, mat.NewSymDense(2, nil), 5, rand.New(rand.NewSource(1)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))
	})

	t.Run("non-positive count", func(t *testing.T) {
		_, err := PerturbObservations([]float64{1}, mat.NewSymDense(1, []float64{1}), 0, rand.New(rand.NewSource(1)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain))
	})
}
