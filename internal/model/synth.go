package model

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/born-ml/deoldify/internal/tensor"
	"github.com/born-ml/deoldify/internal/weights"
)

// synthSource draws deterministic stand-in parameters.
type synthSource struct {
	rng     *rand.Rand
	names   []string
	tensors []*tensor.Tensor
}

func (s *synthSource) param(name string, shape tensor.Shape) (*tensor.Tensor, error) {
	t := tensor.New(shape...)
	data := t.Data()

	switch {
	case strings.HasSuffix(name, ".running_var"):
		fill(data, 1)
	case strings.HasSuffix(name, ".gamma"):
		fill(data, 0.1)
	case name == "layers.11.0.weight":
		// Zero head weights: the output is a uniform tint set by the bias.
	case name == "layers.11.0.bias":
		for i := range data {
			data[i] = float32(s.rng.NormFloat64() * 0.1)
		}
	case len(shape) == 4:
		std := 1 / math.Sqrt(float64(shape[1]*shape[2]*shape[3]))
		for i := range data {
			data[i] = float32(s.rng.NormFloat64() * std)
		}
	case strings.HasSuffix(name, ".weight"):
		fill(data, 1)
	}

	s.names = append(s.names, name)
	s.tensors = append(s.tensors, t)
	return t, nil
}

func fill(data []float32, v float32) {
	for i := range data {
		data[i] = v
	}
}

// Synthesize builds a weight store for a with random convolution kernels and
// identity batch norms. Synthetic stores exercise the full graph and file
// format; they do not colorize meaningfully.
func Synthesize(a Arch, seed uint64) (*weights.Store, error) {
	src := &synthSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	(&binder{src: src}).network(a)
	return weights.NewStore(src.names, src.tensors)
}
