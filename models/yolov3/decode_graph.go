package yolov3

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GraphDecoder computes the logistic and exponential transforms of a whole scale
// tensor in one gorgonia expression graph, then assembles candidates exactly like
// CPUDecoder. Results agree with CPUDecoder within float32 rounding.
type GraphDecoder struct {
	cfg *Config
}

// Decode implements Decoder.
func (d *GraphDecoder) Decode(view *ScaleTensorView, scale int) (*ScaleCandidates, error) {
	sig, exp, err := activate(view.data)
	if err != nil {
		return nil, errors.Wrapf(err, "scale %d", scale)
	}

	act := graphActivations{
		sigs: view.withData(sig),
		exps: view.withData(exp),
	}
	return decodeScale(d.cfg, view, scale, act), nil
}

type graphActivations struct {
	sigs *ScaleTensorView
	exps *ScaleTensorView
}

func (g graphActivations) sigmoid(image, a, e, row, col int) float32 {
	return g.sigs.At(image, a, e, row, col)
}

func (g graphActivations) exp(image, a, e, row, col int) float32 {
	return g.exps.At(image, a, e, row, col)
}

// activate evaluates sigmoid(x) and exp(x) element-wise over data.
//
// Arguments:
//   - data: The raw activations. Not modified.
//
// Returns:
//   - []float32: sigmoid of every value.
//   - []float32: exp of every value.
//   - error: An error if the graph fails to build or run.
func activate(data []float32) ([]float32, []float32, error) {
	g := G.NewGraph()

	backing := make([]float32, len(data))
	copy(backing, data)
	x := G.NodeFromAny(g, tensor.New(tensor.WithShape(len(backing)), tensor.WithBacking(backing)), G.WithName("raw"))

	sig, err := G.Sigmoid(x)
	if err != nil {
		return nil, nil, errors.Wrap(err, "can't prepare sigmoid operation")
	}
	exp, err := G.Exp(x)
	if err != nil {
		return nil, nil, errors.Wrap(err, "can't prepare exp operation")
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	if err := vm.RunAll(); err != nil {
		return nil, nil, errors.Wrap(err, "can't run activation graph")
	}

	sigData, err := float32Values(sig)
	if err != nil {
		return nil, nil, err
	}
	expData, err := float32Values(exp)
	if err != nil {
		return nil, nil, err
	}

	return sigData, expData, nil
}

func float32Values(n *G.Node) ([]float32, error) {
	v := n.Value()
	if v == nil {
		return nil, errors.Errorf("node %s has no value", n.Name())
	}
	data, ok := v.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("node %s holds %T, expected []float32", n.Name(), v.Data())
	}

	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}
