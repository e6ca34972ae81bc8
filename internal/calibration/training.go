package calibration

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// PairedDataset is a matched pair of input and output samples used to
// train an emulator. Columns are samples: Inputs is parameters x samples
// and Outputs is outputs x samples.
type PairedDataset struct {
	Inputs  *mat.Dense
	Outputs *mat.Dense
}

// Samples returns the shared sample count of the pair.
func (d *PairedDataset) Samples() int {
	if d == nil || d.Inputs == nil {
		return 0
	}
	_, c := d.Inputs.Dims()
	return c
}

// IterationSelector chooses which iterations of a ProcessState contribute
// training points. Exactly one constructor applies per value; the tagged
// form keeps the last-iteration exclusion of LastK an explicit branch.
type IterationSelector struct {
	lastK   int
	indices []int
}

// LastK selects the most recent k iterations that have output ensembles,
// i.e. iterations N-k+1 .. N where N is the number of iterations with
// outputs. The final parameter-only iteration of the process is excluded
// by construction of N.
func LastK(k int) IterationSelector {
	return IterationSelector{lastK: k}
}

// Explicit selects exactly the given 1-based iteration indices, in order.
// The indices are passed through to the process state unvalidated; an
// out-of-range index surfaces as the collaborator's index error.
func Explicit(indices ...int) IterationSelector {
	return IterationSelector{indices: append([]int{}, indices...)}
}

// resolve expands the selector against a process state into the concrete
// iteration index list.
func (s IterationSelector) resolve(state ProcessState) ([]int, error) {
	const op = "IterationSelector.resolve"

	if s.indices != nil {
		return s.indices, nil
	}
	n := state.IterationsWithOutputs()
	if s.lastK < 1 {
		return nil, NewErrorf(KindDomain, "iteration count must be positive, got %d", s.lastK).
			WithComponent("calibration").WithOperation(op)
	}
	if s.lastK > n {
		return nil, NewErrorf(KindIndex, "requested last %d iterations but only %d have outputs", s.lastK, n).
			WithComponent("calibration").WithOperation(op)
	}
	indices := make([]int, 0, s.lastK)
	for i := n - s.lastK + 1; i <= n; i++ {
		indices = append(indices, i)
	}
	return indices, nil
}

// ExtractTrainingPoints walks the selected iterations of the process
// state and concatenates their parameter and output ensembles side by
// side into one paired training dataset. Iteration order is preserved;
// the sample count is the sum of the ensemble sizes of the selected
// iterations. Access failures on the process state propagate unchanged.
func ExtractTrainingPoints(state ProcessState, selector IterationSelector) (*PairedDataset, error) {
	const op = "ExtractTrainingPoints"

	if state == nil {
		return nil, NewError(KindShape, "process state must not be nil").
			WithComponent("calibration").WithOperation(op)
	}

	indices, err := selector.resolve(state)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, NewError(KindDomain, "no iterations selected").
			WithComponent("calibration").WithOperation(op)
	}

	var (
		inputs, outputs *mat.Dense
		inRows, outRows int
		totalSamples    int
	)

	for _, i := range indices {
		u, err := state.ParameterEnsemble(i)
		if err != nil {
			return nil, err
		}
		g, err := state.OutputEnsemble(i)
		if err != nil {
			return nil, err
		}

		ur, uc := u.Dims()
		gr, gc := g.Dims()
		if uc != gc {
			return nil, NewErrorf(KindShape,
				"iteration %d: parameter ensemble has %d members but output ensemble has %d", i, uc, gc).
				WithComponent("calibration").WithOperation(op)
		}

		if inputs == nil {
			inRows, outRows = ur, gr
			inputs = mat.DenseCopyOf(u)
			outputs = mat.DenseCopyOf(g)
			totalSamples = uc
			continue
		}
		if ur != inRows || gr != outRows {
			return nil, NewErrorf(KindShape,
				"iteration %d: ensemble dimensions %dx%d/%dx%d do not match earlier iterations", i, ur, uc, gr, gc).
				WithComponent("calibration").WithOperation(op)
		}

		grown := mat.NewDense(inRows, totalSamples+uc, nil)
		grown.Slice(0, inRows, 0, totalSamples).(*mat.Dense).Copy(inputs)
		grown.Slice(0, inRows, totalSamples, totalSamples+uc).(*mat.Dense).Copy(u)
		inputs = grown

		grownOut := mat.NewDense(outRows, totalSamples+gc, nil)
		grownOut.Slice(0, outRows, 0, totalSamples).(*mat.Dense).Copy(outputs)
		grownOut.Slice(0, outRows, totalSamples, totalSamples+gc).(*mat.Dense).Copy(g)
		outputs = grownOut

		totalSamples += uc
	}

	logger().Debug("Extracted training points",
		zap.Ints("iterations", indices),
		zap.Int("samples", totalSamples),
		zap.Int("input_dims", inRows),
		zap.Int("output_dims", outRows),
	)

	return &PairedDataset{Inputs: inputs, Outputs: outputs}, nil
}
