package functional

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/deoldify/internal/parallel"
	"github.com/born-ml/deoldify/internal/tensor"
)

// Flatten reshapes [C, H, W] into [C, H*W] in place.
func Flatten(x *tensor.Tensor) *tensor.Tensor {
	c, h, w := x.Shape().CHW("flatten")
	return x.Reshape(c, h*w)
}

// Unflatten reshapes [C, H*W] into [C, H, W] in place.
func Unflatten(x *tensor.Tensor, h, w int) *tensor.Tensor {
	if x.Rank() != 2 || x.Dim(1) != h*w {
		panic(tensor.Errorf("unflatten", "cannot unflatten %v to %dx%d", x.Shape(), h, w))
	}
	return x.Reshape(x.Dim(0), h, w)
}

// Transpose2d returns a new [N, M] tensor for an [M, N] input.
func Transpose2d(x *tensor.Tensor) *tensor.Tensor {
	if x.Rank() != 2 {
		panic(tensor.Errorf("transpose2d", "expected 2D input, got %v", x.Shape()))
	}
	m, n := x.Dim(0), x.Dim(1)
	out := tensor.New(n, m)
	xd, od := x.Data(), out.Data()
	parallel.For(n, func(j int) {
		row := od[j*m : (j+1)*m]
		for i := range row {
			row[i] = xd[i*n+j]
		}
	}, channelConfig())
	return out
}

// MatMul computes the [M, N] product of an [M, K] and a [K, N] matrix.
func MatMul(a, b *tensor.Tensor) *tensor.Tensor {
	if a.Rank() != 2 || b.Rank() != 2 {
		panic(tensor.Errorf("matmul", "expected 2D operands, got %v and %v", a.Shape(), b.Shape()))
	}
	m, k, n := a.Dim(0), a.Dim(1), b.Dim(1)
	if b.Dim(0) != k {
		panic(tensor.Errorf("matmul", "inner dimensions differ: %v x %v", a.Shape(), b.Shape()))
	}
	out := tensor.New(m, n)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a.Data()},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b.Data()},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: out.Data()})
	return out
}

// Softmax2d normalizes a 2D matrix in place along axis (1: each row sums
// to one, 0: each column sums to one). The slice maximum is subtracted
// before exponentiating.
func Softmax2d(x *tensor.Tensor, axis int) *tensor.Tensor {
	if x.Rank() != 2 {
		panic(tensor.Errorf("softmax2d", "expected 2D input, got %v", x.Shape()))
	}
	rows, cols := x.Dim(0), x.Dim(1)
	data := x.Data()

	switch axis {
	case 1:
		parallel.For(rows, func(i int) {
			softmaxStrided(data[i*cols:], cols, 1)
		}, channelConfig())
	case 0:
		parallel.For(cols, func(j int) {
			softmaxStrided(data[j:], rows, cols)
		}, channelConfig())
	default:
		panic(tensor.Errorf("softmax2d", "axis must be 0 or 1, got %d", axis))
	}
	return x
}

// softmaxStrided normalizes the n values v[0], v[stride], ... in place.
func softmaxStrided(v []float32, n, stride int) {
	maxVal := float32(math.Inf(-1))
	for i := 0; i < n; i++ {
		if v[i*stride] > maxVal {
			maxVal = v[i*stride]
		}
	}
	var sum float64
	for i := 0; i < n; i++ {
		e := math.Exp(float64(v[i*stride] - maxVal))
		v[i*stride] = float32(e)
		sum += e
	}
	inv := float32(1 / sum)
	for i := 0; i < n; i++ {
		v[i*stride] *= inv
	}
}
