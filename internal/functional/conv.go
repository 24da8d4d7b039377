package functional

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/deoldify/internal/parallel"
	"github.com/born-ml/deoldify/internal/tensor"
)

// maxColElements bounds the im2col scratch buffer (in float32 values).
// The widest decoder convolution at full resolution would otherwise need
// several gigabytes of columns.
var maxColElements = 1 << 23

// Conv2dParams configures Conv2d. Zero stride, dilation and groups mean 1.
type Conv2dParams struct {
	PadH, PadW           int
	StrideH, StrideW     int
	DilationH, DilationW int
	Groups               int
}

func (p Conv2dParams) normalized() Conv2dParams {
	p.StrideH = orOne(p.StrideH)
	p.StrideW = orOne(p.StrideW)
	p.DilationH = orOne(p.DilationH)
	p.DilationW = orOne(p.DilationW)
	p.Groups = orOne(p.Groups)
	return p
}

func orOne(v int) int {
	if v == 0 {
		return 1
	}
	return v
}

// Conv2d computes a zero-padded 2D cross-correlation.
//
// Input shape: [C_in, H, W]
// Weight shape: [C_out, C_in/groups, K_h, K_w]
// Bias shape: [C_out] (optional, may be nil)
// Output shape: [C_out, H_out, W_out] where
//
//	H_out = floor((H + 2*pad - dilation*(K_h-1) - 1) / stride) + 1
//
// Algorithm: tiled im2col + SGEMM
//  1. Unfold a band of output rows into a [C_in*K_h*K_w, rows*W_out] column matrix
//  2. Multiply the [C_out, C_in*K_h*K_w] weight matrix by it, writing straight into the output
//  3. Add the bias per output channel
//
// 1x1 kernels with unit stride and no padding skip step 1 and multiply
// against the input directly.
func Conv2d(x, weight, bias *tensor.Tensor, p Conv2dParams) *tensor.Tensor {
	p = p.normalized()
	cIn, h, w := x.Shape().CHW("conv2d")
	if weight.Rank() != 4 {
		panic(tensor.Errorf("conv2d", "weight must be 4D [C_out,C_in,K_h,K_w], got %v", weight.Shape()))
	}
	cOut, cInG, kh, kw := weight.Dim(0), weight.Dim(1), weight.Dim(2), weight.Dim(3)
	groups := p.Groups

	if cInG*groups != cIn {
		panic(tensor.Errorf("conv2d", "input channels %d != weight channels %d x groups %d", cIn, cInG, groups))
	}
	if cOut%groups != 0 {
		panic(tensor.Errorf("conv2d", "output channels %d not divisible by groups %d", cOut, groups))
	}
	if bias != nil && (bias.Rank() != 1 || bias.Dim(0) != cOut) {
		panic(tensor.Errorf("conv2d", "bias shape %v does not match %d output channels", bias.Shape(), cOut))
	}

	hOut := (h+2*p.PadH-p.DilationH*(kh-1)-1)/p.StrideH + 1
	wOut := (w+2*p.PadW-p.DilationW*(kw-1)-1)/p.StrideW + 1
	if hOut <= 0 || wOut <= 0 {
		panic(tensor.Errorf("conv2d", "invalid output dimensions: out_h=%d, out_w=%d (input %v, kernel %dx%d)", hOut, wOut, x.Shape(), kh, kw))
	}

	out := tensor.New(cOut, hOut, wOut)
	cOutG := cOut / groups
	k := cInG * kh * kw
	plane := hOut * wOut
	xd, wd, od := x.Data(), weight.Data(), out.Data()

	pointwise := kh == 1 && kw == 1 && p.StrideH == 1 && p.StrideW == 1 && p.PadH == 0 && p.PadW == 0

	for g := 0; g < groups; g++ {
		a := blas32.General{Rows: cOutG, Cols: k, Stride: k, Data: wd[g*cOutG*k : (g+1)*cOutG*k]}

		if pointwise {
			b := blas32.General{Rows: k, Cols: plane, Stride: plane, Data: xd[g*cInG*h*w : (g+1)*cInG*h*w]}
			c := blas32.General{Rows: cOutG, Cols: plane, Stride: plane, Data: od[g*cOutG*plane : (g+1)*cOutG*plane]}
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, b, 0, c)
			continue
		}

		rowsPerTile := max(1, min(hOut, maxColElements/(k*wOut)))
		col := make([]float32, k*rowsPerTile*wOut)
		src := xd[g*cInG*h*w : (g+1)*cInG*h*w]

		for oh0 := 0; oh0 < hOut; oh0 += rowsPerTile {
			oh1 := min(oh0+rowsPerTile, hOut)
			cols := (oh1 - oh0) * wOut

			im2col(col[:k*cols], src, cInG, h, w, kh, kw, oh0, oh1, wOut, p)

			b := blas32.General{Rows: k, Cols: cols, Stride: cols, Data: col[:k*cols]}
			c := blas32.General{Rows: cOutG, Cols: cols, Stride: plane, Data: od[g*cOutG*plane+oh0*wOut:]}
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, b, 0, c)
		}
	}

	if bias != nil {
		bd := bias.Data()
		parallel.For(cOut, func(co int) {
			row := od[co*plane : (co+1)*plane]
			bv := bd[co]
			for i := range row {
				row[i] += bv
			}
		}, parallel.Default())
	}

	return out
}

// im2col fills col with the [C*K_h*K_w, (oh1-oh0)*W_out] patch matrix for
// output rows [oh0, oh1). Out-of-bounds taps read as zero.
func im2col(col, src []float32, c, h, w, kh, kw, oh0, oh1, wOut int, p Conv2dParams) {
	cols := (oh1 - oh0) * wOut
	cfg := parallel.Default()
	cfg.MinChunkSize = 4

	parallel.For(c*kh*kw, func(r int) {
		ch := r / (kh * kw)
		ky := (r / kw) % kh
		kx := r % kw
		dst := col[r*cols : (r+1)*cols]
		plane := src[ch*h*w : (ch+1)*h*w]

		i := 0
		for oh := oh0; oh < oh1; oh++ {
			ih := oh*p.StrideH - p.PadH + ky*p.DilationH
			if ih < 0 || ih >= h {
				clear(dst[i : i+wOut])
				i += wOut
				continue
			}
			srcRow := plane[ih*w : (ih+1)*w]
			for ow := 0; ow < wOut; ow++ {
				iw := ow*p.StrideW - p.PadW + kx*p.DilationW
				if iw >= 0 && iw < w {
					dst[i] = srcRow[iw]
				} else {
					dst[i] = 0
				}
				i++
			}
		}
	}, cfg)
}
