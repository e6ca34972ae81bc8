// Package calibration provides the shared numerical primitives of the
// calibrate-emulate-sample pipeline: training-point extraction from an
// iterative ensemble process, z-score standardization, reproducible
// observation sampling, and positive-definite covariance repair.
package calibration

import (
	"gonum.org/v1/gonum/mat"
)

// ProcessState is the read-only view of an iterative ensemble-based
// parameter-estimation process. Iteration indices are 1-based. The final
// iteration of the underlying process holds a parameter ensemble whose
// outputs have not been evaluated yet, so IterationsWithOutputs reports
// one less than the number of stored parameter ensembles once the process
// has advanced at least once.
type ProcessState interface {
	// ParameterEnsemble returns the parameter ensemble of iteration i,
	// shaped parameters x members.
	ParameterEnsemble(i int) (*mat.Dense, error)

	// OutputEnsemble returns the model-output ensemble of iteration i,
	// shaped outputs x members.
	OutputEnsemble(i int) (*mat.Dense, error)

	// IterationsWithOutputs returns the number of iterations for which
	// both a parameter and an output ensemble are available.
	IterationsWithOutputs() int
}

// EnsembleHistory is an in-memory ProcessState. The ensemble-update
// process appends a parameter ensemble at the start of each iteration and
// the corresponding output ensemble once the forward model has been run,
// so the parameter list may be one entry ahead of the output list.
type EnsembleHistory struct {
	members int
	params  []*mat.Dense
	outputs []*mat.Dense
}

// NewEnsembleHistory creates an empty history for ensembles of the given
// member count.
func NewEnsembleHistory(members int) (*EnsembleHistory, error) {
	const op = "EnsembleHistory.New"

	if members <= 0 {
		return nil, NewErrorf(KindDomain, "ensemble member count must be positive, got %d", members).
			WithComponent("calibration").WithOperation(op)
	}
	return &EnsembleHistory{members: members}, nil
}

// Members returns the ensemble member count shared by all stored matrices.
func (h *EnsembleHistory) Members() int { return h.members }

// AppendParameters records the parameter ensemble of the next iteration.
// It fails if the previous iteration's outputs have not been recorded yet
// or if the column count does not match the member count.
func (h *EnsembleHistory) AppendParameters(u *mat.Dense) error {
	const op = "EnsembleHistory.AppendParameters"

	if u == nil {
		return NewError(KindShape, "parameter ensemble must not be nil").
			WithComponent("calibration").WithOperation(op)
	}
	if _, c := u.Dims(); c != h.members {
		return NewErrorf(KindShape, "parameter ensemble has %d members, history expects %d", c, h.members).
			WithComponent("calibration").WithOperation(op)
	}
	if len(h.params) > len(h.outputs) {
		return NewError(KindDomain, "previous iteration has no output ensemble yet").
			WithComponent("calibration").WithOperation(op)
	}
	h.params = append(h.params, mat.DenseCopyOf(u))
	return nil
}

// AppendOutputs records the output ensemble corresponding to the most
// recently appended parameter ensemble.
func (h *EnsembleHistory) AppendOutputs(g *mat.Dense) error {
	const op = "EnsembleHistory.AppendOutputs"

	if g == nil {
		return NewError(KindShape, "output ensemble must not be nil").
			WithComponent("calibration").WithOperation(op)
	}
	if _, c := g.Dims(); c != h.members {
		return NewErrorf(KindShape, "output ensemble has %d members, history expects %d", c, h.members).
			WithComponent("calibration").WithOperation(op)
	}
	if len(h.outputs) >= len(h.params) {
		return NewError(KindDomain, "no parameter ensemble awaiting outputs").
			WithComponent("calibration").WithOperation(op)
	}
	h.outputs = append(h.outputs, mat.DenseCopyOf(g))
	return nil
}

// ParameterEnsemble returns a copy of the parameter ensemble of iteration i.
func (h *EnsembleHistory) ParameterEnsemble(i int) (*mat.Dense, error) {
	const op = "EnsembleHistory.ParameterEnsemble"

	if i < 1 || i > len(h.params) {
		return nil, NewErrorf(KindIndex, "iteration %d out of range [1, %d]", i, len(h.params)).
			WithComponent("calibration").WithOperation(op)
	}
	return mat.DenseCopyOf(h.params[i-1]), nil
}

// OutputEnsemble returns a copy of the output ensemble of iteration i.
func (h *EnsembleHistory) OutputEnsemble(i int) (*mat.Dense, error) {
	const op = "EnsembleHistory.OutputEnsemble"

	if i < 1 || i > len(h.outputs) {
		return nil, NewErrorf(KindIndex, "iteration %d out of range [1, %d]", i, len(h.outputs)).
			WithComponent("calibration").WithOperation(op)
	}
	return mat.DenseCopyOf(h.outputs[i-1]), nil
}

// IterationsWithOutputs returns the number of iterations holding both
// ensembles.
func (h *EnsembleHistory) IterationsWithOutputs() int {
	return len(h.outputs)
}
