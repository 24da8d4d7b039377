package functional

import (
	"math"

	"github.com/born-ml/deoldify/internal/parallel"
	"github.com/born-ml/deoldify/internal/tensor"
)

// Pool2dParams configures MaxPool2d and AvgPool2d.
// Zero stride and dilation mean 1.
type Pool2dParams struct {
	KernelH, KernelW     int
	StrideH, StrideW     int
	PadH, PadW           int
	DilationH, DilationW int
}

// Square returns params with the same kernel, stride and padding on both axes.
func Square(kernel, stride, pad int) Pool2dParams {
	return Pool2dParams{KernelH: kernel, KernelW: kernel, StrideH: stride, StrideW: stride, PadH: pad, PadW: pad}
}

func (p Pool2dParams) outSize(op string, h, w int) (hOut, wOut int) {
	if p.KernelH <= 0 || p.KernelW <= 0 {
		panic(tensor.Errorf(op, "invalid kernel %dx%d", p.KernelH, p.KernelW))
	}
	hOut = (h+2*p.PadH-p.DilationH*(p.KernelH-1)-1)/p.StrideH + 1
	wOut = (w+2*p.PadW-p.DilationW*(p.KernelW-1)-1)/p.StrideW + 1
	if hOut <= 0 || wOut <= 0 {
		panic(tensor.Errorf(op, "invalid output dimensions: out_h=%d, out_w=%d", hOut, wOut))
	}
	return hOut, wOut
}

func (p Pool2dParams) normalized() Pool2dParams {
	p.StrideH = orOne(p.StrideH)
	p.StrideW = orOne(p.StrideW)
	p.DilationH = orOne(p.DilationH)
	p.DilationW = orOne(p.DilationW)
	return p
}

// MaxPool2d takes the maximum over each window. Padding cells are -Inf and
// never win against a real value.
func MaxPool2d(x *tensor.Tensor, p Pool2dParams) *tensor.Tensor {
	p = p.normalized()
	c, h, w := x.Shape().CHW("max_pool2d")
	hOut, wOut := p.outSize("max_pool2d", h, w)

	out := tensor.New(c, hOut, wOut)
	xd, od := x.Data(), out.Data()
	negInf := float32(math.Inf(-1))

	parallel.For(c, func(ch int) {
		src := xd[ch*h*w : (ch+1)*h*w]
		dst := od[ch*hOut*wOut : (ch+1)*hOut*wOut]
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				m := negInf
				for ky := 0; ky < p.KernelH; ky++ {
					ih := oh*p.StrideH - p.PadH + ky*p.DilationH
					if ih < 0 || ih >= h {
						continue
					}
					row := src[ih*w : (ih+1)*w]
					for kx := 0; kx < p.KernelW; kx++ {
						iw := ow*p.StrideW - p.PadW + kx*p.DilationW
						if iw >= 0 && iw < w && row[iw] > m {
							m = row[iw]
						}
					}
				}
				dst[oh*wOut+ow] = m
			}
		}
	}, channelConfig())
	return out
}

// AvgPool2d averages each window. Zero padding counts toward the divisor,
// which is always KernelH*KernelW.
//
// With kernel 2, stride 1 and padding 1 the output is one larger than the
// input on each axis; the decoder crops it back when concatenating.
func AvgPool2d(x *tensor.Tensor, p Pool2dParams) *tensor.Tensor {
	p = p.normalized()
	c, h, w := x.Shape().CHW("avg_pool2d")
	hOut, wOut := p.outSize("avg_pool2d", h, w)

	out := tensor.New(c, hOut, wOut)
	xd, od := x.Data(), out.Data()
	inv := 1 / float32(p.KernelH*p.KernelW)

	parallel.For(c, func(ch int) {
		src := xd[ch*h*w : (ch+1)*h*w]
		dst := od[ch*hOut*wOut : (ch+1)*hOut*wOut]
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				var sum float32
				for ky := 0; ky < p.KernelH; ky++ {
					ih := oh*p.StrideH - p.PadH + ky*p.DilationH
					if ih < 0 || ih >= h {
						continue
					}
					row := src[ih*w : (ih+1)*w]
					for kx := 0; kx < p.KernelW; kx++ {
						iw := ow*p.StrideW - p.PadW + kx*p.DilationW
						if iw >= 0 && iw < w {
							sum += row[iw]
						}
					}
				}
				dst[oh*wOut+ow] = sum * inv
			}
		}
	}, channelConfig())
	return out
}
