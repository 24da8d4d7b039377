package model

import (
	F "github.com/born-ml/deoldify/internal/functional"
	"github.com/born-ml/deoldify/internal/tensor"
)

// Conv is a bound convolution. Bias is nil for bias-free layers.
type Conv struct {
	Weight *tensor.Tensor
	Bias   *tensor.Tensor
	Params F.Conv2dParams
}

func (c *Conv) forward(x *tensor.Tensor, p *progress) *tensor.Tensor {
	y := F.Conv2d(x, c.Weight, c.Bias, c.Params)
	p.advance()
	return y
}

// BatchNorm is a bound inference-mode batch normalization.
type BatchNorm struct {
	F.BatchNormParams
}

// forward consumes x.
func (bn *BatchNorm) forward(x *tensor.Tensor) *tensor.Tensor {
	return F.BatchNorm2d(x, bn.BatchNormParams, F.DefaultEpsilon)
}

// ResidualBlock is one encoder block, bottleneck (Conv3 set) or basic.
type ResidualBlock struct {
	Conv1, Conv2, Conv3 *Conv
	BN1, BN2, BN3       *BatchNorm

	// Projection of the identity path; nil when shapes already agree.
	Downsample   *Conv
	DownsampleBN *BatchNorm
}

func (b *ResidualBlock) forward(x *tensor.Tensor, p *progress) *tensor.Tensor {
	out := b.BN1.forward(b.Conv1.forward(x, p))
	out = F.ReLU(out)
	out = b.BN2.forward(b.Conv2.forward(out, p))
	if b.Conv3 != nil {
		out = F.ReLU(out)
		out = b.BN3.forward(b.Conv3.forward(out, p))
	}

	identity := x
	if b.Downsample != nil {
		identity = b.DownsampleBN.forward(b.Downsample.forward(x, p))
	}
	return F.ReLU(F.Add(out, identity))
}

// MiddleBlock widens and narrows the encoder output: conv -> ReLU -> BN twice.
type MiddleBlock struct {
	Conv1, Conv2 *Conv
	BN1, BN2     *BatchNorm
}

func (m *MiddleBlock) forward(x *tensor.Tensor, p *progress) *tensor.Tensor {
	y := m.BN1.forward(F.ReLU(m.Conv1.forward(x, p)))
	return m.BN2.forward(F.ReLU(m.Conv2.forward(y, p)))
}

var smoothing = F.Square(2, 1, 1)

// ShuffleBlock doubles the spatial size: 1x1 conv -> BN -> ReLU -> pixel
// shuffle -> 2x2 average smoothing.
type ShuffleBlock struct {
	Conv *Conv
	BN   *BatchNorm
}

func (s *ShuffleBlock) forward(x *tensor.Tensor, p *progress) *tensor.Tensor {
	y := F.ReLU(s.BN.forward(s.Conv.forward(x, p)))
	return F.AvgPool2d(F.PixelShuffle(y, 2), smoothing)
}

// SelfAttention is the SAGAN-style attention layer.
type SelfAttention struct {
	Query, Key, Value *Conv
	Gamma             float32
}

func (a *SelfAttention) forward(x *tensor.Tensor, p *progress) *tensor.Tensor {
	_, h, w := x.Shape().CHW("self_attention")
	f := F.Flatten(a.Query.forward(x, p))
	g := F.Flatten(a.Key.forward(x, p))
	v := F.Flatten(a.Value.forward(x, p))

	// beta[i, j] weighs source position i for output position j.
	beta := F.Softmax2d(F.MatMul(F.Transpose2d(f), g), 0)
	o := F.Unflatten(F.MulScalar(F.MatMul(v, beta), a.Gamma), h, w)
	return F.Add(o, x)
}

// DecoderBlock upsamples the running decoder tensor and merges an encoder
// skip tensor into it.
type DecoderBlock struct {
	Shuffle *ShuffleBlock
	SkipBN  *BatchNorm

	// Convs and BNs hold one (wide) or two (deep) conv -> ReLU -> BN stages.
	Convs []*Conv
	BNs   []*BatchNorm

	Attention *SelfAttention // nil unless the block is attentional
}

// forward consumes skip.
func (d *DecoderBlock) forward(x, skip *tensor.Tensor, p *progress) *tensor.Tensor {
	up := d.Shuffle.forward(x, p)
	y := F.ReLU(F.RestrictedCat2d(up, d.SkipBN.forward(skip)))
	for i, conv := range d.Convs {
		y = d.BNs[i].forward(F.ReLU(conv.forward(y, p)))
	}
	if d.Attention != nil {
		y = d.Attention.forward(y, p)
	}
	return y
}

// FinalShuffle is the last upsampling: 1x1 conv with bias -> pixel shuffle
// -> ReLU -> 2x2 average smoothing.
type FinalShuffle struct {
	Conv *Conv
}

func (s *FinalShuffle) forward(x *tensor.Tensor, p *progress) *tensor.Tensor {
	y := F.ReLU(F.PixelShuffle(s.Conv.forward(x, p), 2))
	return F.AvgPool2d(y, smoothing)
}

// RefineBlock is x + ReLU(conv(ReLU(conv(x)))) with biased 3x3 convs.
type RefineBlock struct {
	Conv1, Conv2 *Conv
}

func (r *RefineBlock) forward(x *tensor.Tensor, p *progress) *tensor.Tensor {
	y := F.ReLU(r.Conv1.forward(x, p))
	y = F.ReLU(r.Conv2.forward(y, p))
	return F.Add(y, x)
}
