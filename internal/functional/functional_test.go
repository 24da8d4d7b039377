package functional

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/deoldify/internal/tensor"
)

func seq(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i)
	}
	return v
}

func randTensor(rng *rand.Rand, dims ...int) *tensor.Tensor {
	x := tensor.New(dims...)
	for i := range x.Data() {
		x.Data()[i] = rng.Float32()*2 - 1
	}
	return x
}

// naiveConv2d is a direct loop reference for Conv2d.
func naiveConv2d(x, weight, bias *tensor.Tensor, p Conv2dParams) *tensor.Tensor {
	p = p.normalized()
	cIn, h, w := x.Shape().CHW("naive")
	cOut, cInG, kh, kw := weight.Dim(0), weight.Dim(1), weight.Dim(2), weight.Dim(3)
	hOut := (h+2*p.PadH-p.DilationH*(kh-1)-1)/p.StrideH + 1
	wOut := (w+2*p.PadW-p.DilationW*(kw-1)-1)/p.StrideW + 1
	cOutG := cOut / p.Groups
	_ = cIn

	out := tensor.New(cOut, hOut, wOut)
	for co := 0; co < cOut; co++ {
		g := co / cOutG
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				var sum float32
				if bias != nil {
					sum = bias.At(co)
				}
				for ci := 0; ci < cInG; ci++ {
					for ky := 0; ky < kh; ky++ {
						for kx := 0; kx < kw; kx++ {
							ih := oh*p.StrideH - p.PadH + ky*p.DilationH
							iw := ow*p.StrideW - p.PadW + kx*p.DilationW
							if ih < 0 || ih >= h || iw < 0 || iw >= w {
								continue
							}
							sum += x.At(g*cInG+ci, ih, iw) * weight.At(co, ci, ky, kx)
						}
					}
				}
				out.Set(sum, co, oh, ow)
			}
		}
	}
	return out
}

func TestConv2d_BasicForward(t *testing.T) {
	// 1 2 3
	// 4 5 6
	// 7 8 9
	x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 3, 3)
	// 1 0
	// 0 1
	k := tensor.MustFromSlice([]float32{1, 0, 0, 1}, 1, 1, 2, 2)

	out := Conv2d(x, k, nil, Conv2dParams{})
	assert.Equal(t, tensor.Shape{1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, out.Data())
}

func TestConv2d_UnitKernelIsIdentity(t *testing.T) {
	x := tensor.MustFromSlice([]float32{0.1, -2.5, 3.75, 1e-7, 42, -0.3}, 1, 2, 3)
	out := Conv2d(x, tensor.MustFromSlice([]float32{1}, 1, 1, 1, 1), tensor.MustFromSlice([]float32{0}, 1), Conv2dParams{})
	assert.Equal(t, x.Shape(), out.Shape())
	assert.Equal(t, x.Data(), out.Data())

	rng := rand.New(rand.NewPCG(3, 4))
	x = tensor.New(3, 5, 4)
	for i := range x.Data() {
		x.Data()[i] = rng.Float32()*2 - 1
	}
	eye := tensor.New(3, 3, 1, 1)
	for c := 0; c < 3; c++ {
		eye.Set(1, c, c, 0, 0)
	}
	out = Conv2d(x, eye, tensor.New(3), Conv2dParams{})
	assert.Equal(t, x.Shape(), out.Shape())
	assert.Equal(t, x.Data(), out.Data())
}

func TestConv2d_Padding(t *testing.T) {
	x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 3, 3)
	k := tensor.MustFromSlice([]float32{1, 1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 3, 3)

	out := Conv2d(x, k, tensor.MustFromSlice([]float32{0.5}, 1), Conv2dParams{PadH: 1, PadW: 1})
	require.Equal(t, tensor.Shape{1, 3, 3}, out.Shape())
	assert.Equal(t, float32(12.5), out.At(0, 0, 0))
	assert.Equal(t, float32(45.5), out.At(0, 1, 1))
	assert.Equal(t, float32(28.5), out.At(0, 2, 2))
}

func TestConv2d_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	tests := []struct {
		name   string
		x      []int
		w      []int
		bias   bool
		params Conv2dParams
	}{
		{"pointwise", []int{5, 6, 7}, []int{4, 5, 1, 1}, false, Conv2dParams{}},
		{"pointwise bias", []int{5, 6, 7}, []int{4, 5, 1, 1}, true, Conv2dParams{}},
		{"strided 1x1", []int{6, 9, 8}, []int{3, 6, 1, 1}, false, Conv2dParams{StrideH: 2, StrideW: 2}},
		{"stem 7x7", []int{3, 17, 13}, []int{4, 3, 7, 7}, false, Conv2dParams{PadH: 3, PadW: 3, StrideH: 2, StrideW: 2}},
		{"3x3 pad", []int{4, 10, 11}, []int{6, 4, 3, 3}, true, Conv2dParams{PadH: 1, PadW: 1}},
		{"1x1 pad", []int{3, 4, 5}, []int{3, 3, 1, 1}, true, Conv2dParams{PadH: 1, PadW: 1}},
		{"dilated", []int{2, 12, 12}, []int{3, 2, 3, 3}, false, Conv2dParams{PadH: 2, PadW: 2, DilationH: 2, DilationW: 2}},
		{"grouped", []int{4, 8, 8}, []int{6, 2, 3, 3}, true, Conv2dParams{PadH: 1, PadW: 1, Groups: 2}},
		{"asymmetric", []int{2, 9, 7}, []int{2, 2, 3, 2}, false, Conv2dParams{PadH: 1, StrideW: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := randTensor(rng, tt.x...)
			w := randTensor(rng, tt.w...)
			var b *tensor.Tensor
			if tt.bias {
				b = randTensor(rng, tt.w[0])
			}

			got := Conv2d(x, w, b, tt.params)
			want := naiveConv2d(x, w, b, tt.params)
			require.Equal(t, want.Shape(), got.Shape())
			assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-4)
		})
	}
}

func TestConv2d_Tiled(t *testing.T) {
	old := maxColElements
	maxColElements = 100
	defer func() { maxColElements = old }()

	rng := rand.New(rand.NewPCG(3, 4))
	x := randTensor(rng, 3, 11, 9)
	w := randTensor(rng, 5, 3, 3, 3)
	p := Conv2dParams{PadH: 1, PadW: 1}

	assert.InDeltaSlice(t, naiveConv2d(x, w, nil, p).Data(), Conv2d(x, w, nil, p).Data(), 1e-4)
}

func TestConv2d_ShapeErrors(t *testing.T) {
	x := tensor.New(3, 4, 4)

	tests := []struct {
		name string
		w    *tensor.Tensor
		b    *tensor.Tensor
		p    Conv2dParams
	}{
		{"channel mismatch", tensor.New(2, 4, 3, 3), nil, Conv2dParams{}},
		{"weight rank", tensor.New(2, 3, 3), nil, Conv2dParams{}},
		{"bias length", tensor.New(2, 3, 1, 1), tensor.New(3), Conv2dParams{}},
		{"empty output", tensor.New(2, 3, 5, 5), nil, Conv2dParams{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				assert.IsType(t, &tensor.ShapeError{}, r)
			}()
			Conv2d(x, tt.w, tt.b, tt.p)
		})
	}
}

func TestBatchNorm2d(t *testing.T) {
	x := tensor.MustFromSlice([]float32{6, 2, 1, 3}, 2, 1, 2)
	p := BatchNormParams{
		Mean:   tensor.MustFromSlice([]float32{2, 0}, 2),
		Var:    tensor.MustFromSlice([]float32{4, 1}, 2),
		Weight: tensor.MustFromSlice([]float32{3, 1}, 2),
		Bias:   tensor.MustFromSlice([]float32{1, 0}, 2),
	}

	out := BatchNorm2d(x, p, 0)
	assert.Same(t, x, out)
	assert.Equal(t, []float32{7, 1, 1, 3}, out.Data())
}

func TestBatchNorm2d_Identity(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	x := randTensor(rng, 3, 4, 4)
	want := x.Clone()

	ones := tensor.MustFromSlice([]float32{1, 1, 1}, 3)
	p := BatchNormParams{Mean: tensor.New(3), Var: ones, Weight: ones, Bias: tensor.New(3)}

	assert.InDeltaSlice(t, want.Data(), BatchNorm2d(x, p, DefaultEpsilon).Data(), 1e-4)
}

func TestActivations(t *testing.T) {
	x := tensor.MustFromSlice([]float32{-2, 0, 3}, 3)
	assert.Equal(t, []float32{0, 0, 3}, ReLU(x).Data())

	s := Sigmoid(tensor.MustFromSlice([]float32{0, 100, -100}, 3))
	assert.InDeltaSlice(t, []float32{0.5, 1, 0}, s.Data(), 1e-6)

	m := MulScalar(tensor.MustFromSlice([]float32{1, -2}, 2), 0.5)
	assert.Equal(t, []float32{0.5, -1}, m.Data())
}

func TestAdd(t *testing.T) {
	a := tensor.MustFromSlice([]float32{1, 2, 3, 4}, 1, 2, 2)
	b := tensor.MustFromSlice([]float32{10, 20, 30, 40}, 1, 2, 2)
	assert.Equal(t, []float32{11, 22, 33, 44}, Add(a, b).Data())

	assert.Panics(t, func() { Add(tensor.New(1, 2, 2), tensor.New(1, 2, 3)) })
	assert.Panics(t, func() { Add(tensor.New(1, 2, 2), tensor.New(2, 1, 2)) })
}

func TestMaxPool2d(t *testing.T) {
	x := tensor.MustFromSlice(seq(16), 1, 4, 4)
	out := MaxPool2d(x, Square(3, 2, 1))
	require.Equal(t, tensor.Shape{1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{5, 7, 13, 15}, out.Data())
}

func TestMaxPool2d_NegativeInputs(t *testing.T) {
	// Padding must not leak zeros into all-negative windows.
	x := tensor.MustFromSlice([]float32{-4, -3, -2, -1}, 1, 2, 2)
	out := MaxPool2d(x, Square(3, 2, 1))
	assert.Equal(t, []float32{-1}, out.Data())
}

func TestAvgPool2d_Smoothing(t *testing.T) {
	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, 1, 2, 2)
	out := AvgPool2d(x, Square(2, 1, 1))
	require.Equal(t, tensor.Shape{1, 3, 3}, out.Shape())
	assert.InDeltaSlice(t, []float32{
		0.25, 0.75, 0.5,
		1, 2.5, 1.5,
		0.75, 1.75, 1,
	}, out.Data(), 1e-6)
}

func TestAvgPool2d_GrowsByOne(t *testing.T) {
	for _, hw := range [][2]int{{8, 8}, {16, 22}, {64, 85}} {
		out := AvgPool2d(tensor.New(2, hw[0], hw[1]), Square(2, 1, 1))
		assert.Equal(t, tensor.Shape{2, hw[0] + 1, hw[1] + 1}, out.Shape())
	}
}

func TestPixelShuffle(t *testing.T) {
	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, 4, 1, 1)
	out := PixelShuffle(x, 2)
	require.Equal(t, tensor.Shape{1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, out.Data())

	// Two spatial positions: channel k lands at sub-pixel (k/2, k%2).
	x = tensor.MustFromSlice([]float32{1, 5, 2, 6, 3, 7, 4, 8}, 4, 1, 2)
	out = PixelShuffle(x, 2)
	require.Equal(t, tensor.Shape{1, 2, 4}, out.Shape())
	assert.Equal(t, []float32{1, 2, 5, 6, 3, 4, 7, 8}, out.Data())

	assert.Panics(t, func() { PixelShuffle(tensor.New(3, 2, 2), 2) })
}

func TestPixelUnshuffle_Inverse(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	x := randTensor(rng, 8, 3, 5)

	shuffled := PixelShuffle(x, 2)
	assert.Equal(t, tensor.Shape{2, 6, 10}, shuffled.Shape())
	back := PixelUnshuffle(shuffled, 2)
	assert.Equal(t, x.Shape(), back.Shape())
	assert.Equal(t, x.Data(), back.Data())
}

func TestRestrictedCat2d(t *testing.T) {
	a := tensor.MustFromSlice(seq(16), 1, 4, 4)
	b := tensor.MustFromSlice([]float32{-1, -2, -3, -4, -5, -6, -7, -8}, 2, 2, 2)

	out := RestrictedCat2d(a, b)
	require.Equal(t, tensor.Shape{3, 2, 2}, out.Shape())
	assert.Equal(t, []float32{5, 6, 9, 10, -1, -2, -3, -4, -5, -6, -7, -8}, out.Data())

	// Off-by-one: floor(1/2) = 0 leading cells dropped.
	a = tensor.MustFromSlice(seq(9), 1, 3, 3)
	out = RestrictedCat2d(b, a)
	require.Equal(t, tensor.Shape{3, 2, 2}, out.Shape())
	assert.Equal(t, []float32{0, 1, 3, 4}, out.Data()[8:])
}

func TestMatMulTranspose(t *testing.T) {
	a := tensor.MustFromSlice([]float32{1, 2, 3, 4}, 2, 2)
	b := tensor.MustFromSlice([]float32{5, 6, 7, 8}, 2, 2)
	assert.Equal(t, []float32{19, 22, 43, 50}, MatMul(a, b).Data())

	c := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	ct := Transpose2d(c)
	assert.Equal(t, tensor.Shape{3, 2}, ct.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, ct.Data())

	assert.Panics(t, func() { MatMul(c, c) })
}

func TestFlattenUnflatten(t *testing.T) {
	x := tensor.MustFromSlice(seq(12), 2, 2, 3)
	f := Flatten(x)
	assert.Equal(t, tensor.Shape{2, 6}, f.Shape())
	u := Unflatten(f, 2, 3)
	assert.Equal(t, tensor.Shape{2, 2, 3}, u.Shape())
	assert.Panics(t, func() { Unflatten(tensor.New(2, 6), 4, 2) })
}

func TestSoftmax2d(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	x := randTensor(rng, 5, 7)
	shifted := x.Clone()
	for i := range shifted.Data() {
		if i/7 == 2 {
			shifted.Data()[i] += 10
		}
	}

	rows := Softmax2d(x.Clone(), 1)
	for i := 0; i < 5; i++ {
		var sum float64
		for j := 0; j < 7; j++ {
			sum += float64(rows.At(i, j))
		}
		assert.InDelta(t, 1.0, sum, 1e-5, "row %d", i)
	}

	// Adding a constant to a row leaves that row unchanged.
	got := Softmax2d(shifted, 1)
	assert.InDeltaSlice(t, rows.Data(), got.Data(), 1e-5)

	big := Softmax2d(tensor.MustFromSlice([]float32{1000, 1001, 999, 1000}, 1, 4), 1)
	for _, v := range big.Data() {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}

	cols := Softmax2d(x.Clone(), 0)
	for j := 0; j < 7; j++ {
		var sum float64
		for i := 0; i < 5; i++ {
			sum += float64(cols.At(i, j))
		}
		assert.InDelta(t, 1.0, sum, 1e-5, "column %d", j)
	}

	assert.Panics(t, func() { Softmax2d(x, 2) })
}
