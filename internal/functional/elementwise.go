package functional

import (
	"math"

	"github.com/born-ml/deoldify/internal/parallel"
	"github.com/born-ml/deoldify/internal/tensor"
)

// DefaultEpsilon is the batch-norm variance epsilon of the pretrained models.
const DefaultEpsilon = 1e-5

// BatchNormParams holds the per-channel statistics and affine terms.
// All four tensors have shape [C].
type BatchNormParams struct {
	Mean, Var    *tensor.Tensor
	Weight, Bias *tensor.Tensor
}

// BatchNorm2d normalizes x in place with running statistics:
//
//	y = (x - mean) / sqrt(var + eps) * weight + bias
//
// x is consumed; the returned tensor shares its buffer.
func BatchNorm2d(x *tensor.Tensor, p BatchNormParams, eps float32) *tensor.Tensor {
	c, h, w := x.Shape().CHW("batch_norm2d")
	for _, param := range []*tensor.Tensor{p.Mean, p.Var, p.Weight, p.Bias} {
		if param.Rank() != 1 || param.Dim(0) != c {
			panic(tensor.Errorf("batch_norm2d", "parameter shape %v does not match %d channels", param.Shape(), c))
		}
	}

	mean, variance, weight, bias := p.Mean.Data(), p.Var.Data(), p.Weight.Data(), p.Bias.Data()
	data := x.Data()
	plane := h * w

	parallel.For(c, func(ch int) {
		m := mean[ch]
		s := float32(math.Sqrt(float64(variance[ch] + eps)))
		g, b := weight[ch], bias[ch]
		row := data[ch*plane : (ch+1)*plane]
		for i, v := range row {
			row[i] = (v-m)/s*g + b
		}
	}, channelConfig())
	return x
}

// ReLU applies max(0, x) in place and returns x.
func ReLU(x *tensor.Tensor) *tensor.Tensor {
	mapInPlace(x, func(v float32) float32 {
		if v < 0 {
			return 0
		}
		return v
	})
	return x
}

// Sigmoid applies 1/(1+exp(-x)) in place and returns x.
func Sigmoid(x *tensor.Tensor) *tensor.Tensor {
	mapInPlace(x, func(v float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(v))))
	})
	return x
}

// MulScalar multiplies x by s in place and returns x.
func MulScalar(x *tensor.Tensor, s float32) *tensor.Tensor {
	mapInPlace(x, func(v float32) float32 { return v * s })
	return x
}

// Add stores a+b into a and returns it. Shapes must be identical.
func Add(a, b *tensor.Tensor) *tensor.Tensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(tensor.Errorf("add", "shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	ad, bd := a.Data(), b.Data()
	parallel.ForChunks(len(ad), func(start, end int) {
		for i := start; i < end; i++ {
			ad[i] += bd[i]
		}
	}, elementConfig())
	return a
}

func mapInPlace(x *tensor.Tensor, f func(float32) float32) {
	data := x.Data()
	parallel.ForChunks(len(data), func(start, end int) {
		for i := start; i < end; i++ {
			data[i] = f(data[i])
		}
	}, elementConfig())
}

// elementConfig keeps element-wise chunks large enough to amortize goroutines.
func elementConfig() parallel.Config {
	cfg := parallel.Default()
	cfg.MinChunkSize = 1 << 14
	return cfg
}

// channelConfig parallelizes per-channel loops even for narrow tensors.
func channelConfig() parallel.Config {
	cfg := parallel.Default()
	cfg.MinChunkSize = 8
	return cfg
}
