package calibration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestEnsembleHistoryBookkeeping(t *testing.T) {
	h, err := NewEnsembleHistory(3)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Members())
	assert.Equal(t, 0, h.IterationsWithOutputs())

	u1 := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	g1 := mat.NewDense(1, 3, []float64{7, 8, 9})

	require.NoError(t, h.AppendParameters(u1))
	assert.Equal(t, 0, h.IterationsWithOutputs(), "parameters alone do not count as a data-bearing iteration")

	require.NoError(t, h.AppendOutputs(g1))
	assert.Equal(t, 1, h.IterationsWithOutputs())

	// The next parameter ensemble opens iteration 2; until its outputs
	// arrive the iteration count stays at 1.
	require.NoError(t, h.AppendParameters(u1))
	assert.Equal(t, 1, h.IterationsWithOutputs())

	got, err := h.ParameterEnsemble(1)
	require.NoError(t, err)
	assertMatEqual(t, got, u1, 0)

	gotG, err := h.OutputEnsemble(1)
	require.NoError(t, err)
	assertMatEqual(t, gotG, g1, 0)
}

func TestEnsembleHistorySequencing(t *testing.T) {
	h, err := NewEnsembleHistory(2)
	require.NoError(t, err)

	u := mat.NewDense(1, 2, []float64{1, 2})
	g := mat.NewDense(1, 2, []float64{3, 4})

	t.Run("outputs before any parameters", func(t *testing.T) {
		err := h.AppendOutputs(g)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain))
	})

	require.NoError(t, h.AppendParameters(u))

	t.Run("second parameter ensemble before outputs", func(t *testing.T) {
		err := h.AppendParameters(u)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain))
	})

	require.NoError(t, h.AppendOutputs(g))
	require.NoError(t, h.AppendParameters(u))

	t.Run("extra outputs for the same iteration", func(t *testing.T) {
		require.NoError(t, h.AppendOutputs(g))
		err := h.AppendOutputs(g)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain))
	})
}

func TestEnsembleHistoryShapeChecks(t *testing.T) {
	h, err := NewEnsembleHistory(2)
	require.NoError(t, err)

	t.Run("wrong member count", func(t *testing.T) {
		err := h.AppendParameters(mat.NewDense(1, 3, nil))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))
	})

	t.Run("nil ensemble", func(t *testing.T) {
		err := h.AppendParameters(nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))
	})

	t.Run("non-positive members", func(t *testing.T) {
		_, err := NewEnsembleHistory(0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain))
	})
}

func TestEnsembleHistoryIndexErrors(t *testing.T) {
	h := historyWithIterations(t, 2, 1, 1, 2)

	t.Run("iteration zero", func(t *testing.T) {
		_, err := h.ParameterEnsemble(0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIndex))
	})

	t.Run("outputs beyond data-bearing range", func(t *testing.T) {
		// Iteration 3 holds only the trailing parameter ensemble.
		_, err := h.ParameterEnsemble(3)
		require.NoError(t, err)
		_, gErr := h.OutputEnsemble(3)
		require.Error(t, gErr)
		assert.True(t, errors.Is(gErr, ErrIndex))
	})
}

func TestEnsembleHistoryDefensiveCopies(t *testing.T) {
	h, err := NewEnsembleHistory(2)
	require.NoError(t, err)

	u := mat.NewDense(1, 2, []float64{1, 2})
	require.NoError(t, h.AppendParameters(u))

	// Mutating the appended matrix must not change the stored copy.
	u.Set(0, 0, -1)
	stored, err := h.ParameterEnsemble(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.At(0, 0))

	// Mutating the returned matrix must not change later reads.
	stored.Set(0, 1, -2)
	again, err := h.ParameterEnsemble(1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, again.At(0, 1))
}

func TestEnsembleHistoryImplementsProcessState(t *testing.T) {
	var _ ProcessState = (*EnsembleHistory)(nil)
}
