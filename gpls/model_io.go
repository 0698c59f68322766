package gpls

import (
	"encoding/gob"
	"errors"
	"io"

	"gonum.org/v1/gonum/mat"
)

// modelState is the serializable form of a fitted model. Scores are not
// serialized: they refer to the training data and are not needed to predict.
type modelState struct {
	Version     int
	NVars       int
	NResp       int
	NComponents int
	Weights     []float64
	Loadings    []float64
	YLoadings   []float64
	Rotations   []float64
	Bel         []int
	States      [][]int
}

// Save serializes the model to gob format.
func (mdl *Model) Save(w io.Writer) error {
	state := modelState{
		Version:     1,
		NVars:       mdl.NVars,
		NResp:       mdl.NResp,
		NComponents: mdl.NComponents,
		Bel:         mdl.Bel,
		States:      mdl.States,
	}
	if mdl.NComponents > 0 {
		state.Weights = flatten(mdl.Weights)
		state.Loadings = flatten(mdl.Loadings)
		state.YLoadings = flatten(mdl.YLoadings)
		state.Rotations = flatten(mdl.Rotations)
	}
	return gob.NewEncoder(w).Encode(state)
}

// Load deserializes a model previously written by Save.
func Load(r io.Reader) (*Model, error) {
	var state modelState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, err
	}
	if state.Version != 1 {
		return nil, errors.New("gpls: unsupported gob version")
	}
	if state.NVars <= 0 || state.NResp <= 0 || state.NComponents < 0 {
		return nil, errors.New("gpls: corrupt model state")
	}

	mdl := &Model{
		NVars:       state.NVars,
		NResp:       state.NResp,
		NComponents: state.NComponents,
		Bel:         state.Bel,
		States:      state.States,
	}
	if state.NComponents > 0 {
		a := state.NComponents
		var err error
		if mdl.Weights, err = unflatten(state.Weights, state.NVars, a); err != nil {
			return nil, err
		}
		if mdl.Loadings, err = unflatten(state.Loadings, state.NVars, a); err != nil {
			return nil, err
		}
		if mdl.YLoadings, err = unflatten(state.YLoadings, state.NResp, a); err != nil {
			return nil, err
		}
		if mdl.Rotations, err = unflatten(state.Rotations, state.NVars, a); err != nil {
			return nil, err
		}
	}
	return mdl, nil
}

func flatten(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	out := make([]float64, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		copy(out[i*raw.Cols:(i+1)*raw.Cols], raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols])
	}
	return out
}

func unflatten(data []float64, rows, cols int) (*mat.Dense, error) {
	if len(data) != rows*cols {
		return nil, errors.New("gpls: invalid matrix data length")
	}
	cp := make([]float64, len(data))
	copy(cp, data)
	return mat.NewDense(rows, cols, cp), nil
}
