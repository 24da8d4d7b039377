package model

import (
	F "github.com/born-ml/deoldify/internal/functional"
	"github.com/born-ml/deoldify/internal/tensor"
)

// ProgressFunc receives the completion percentage of a forward pass, in
// [0, 100], after every convolution. It runs on the caller's goroutine.
type ProgressFunc func(percent float64)

// progress tracks one forward pass.
type progress struct {
	fn    ProgressFunc
	step  float64
	value float64
}

func (p *progress) advance() {
	p.value += p.step
	if p.fn != nil {
		p.fn(min(max(p.value, 0), 100))
	}
}

// Network is a fully bound colorization network. It is immutable and safe
// for concurrent use.
type Network struct {
	Arch Arch

	StemConv  *Conv
	StemBN    *BatchNorm
	Encoder   [4][]*ResidualBlock
	EncoderBN *BatchNorm
	Middle    *MiddleBlock
	Decoder   [4]*DecoderBlock
	Shuffle   *FinalShuffle
	Refine    *RefineBlock
	Head      *Conv

	convs int
}

// ConvCount returns the number of progress reports per forward pass.
func (n *Network) ConvCount() int { return n.convs }

// Forward runs the network on a normalized (3, H, W) tensor and returns the
// (3, H, W) sigmoid output. x is not modified.
//
// Shape errors raised by the operators are returned as *tensor.ShapeError.
// A panic in the progress callback is not recovered.
func (n *Network) Forward(x *tensor.Tensor, fn ProgressFunc) (out *tensor.Tensor, err error) {
	defer tensor.Recover(&err)

	if c, _, _ := x.Shape().CHW("forward"); c != 3 {
		return nil, tensor.Errorf("forward", "expected 3 input channels, got %d", c)
	}

	p := &progress{fn: fn, step: 100 / float64(n.convs)}

	x1 := F.ReLU(n.StemBN.forward(n.StemConv.forward(x, p)))
	y := F.MaxPool2d(x1, F.Square(3, 2, 1))

	var skips [4]*tensor.Tensor
	for s, blocks := range n.Encoder {
		for _, blk := range blocks {
			y = blk.forward(y, p)
		}
		skips[s] = y
	}

	y = F.ReLU(n.EncoderBN.forward(y))
	y = n.Middle.forward(y, p)

	// Decoder blocks consume the skips deepest first, ending with the stem.
	skipFor := [4]*tensor.Tensor{skips[2], skips[1], skips[0], x1}
	for i, dec := range n.Decoder {
		y = dec.forward(y, skipFor[i], p)
	}

	y = n.Shuffle.forward(y, p)
	y = F.RestrictedCat2d(y, x)
	y = n.Refine.forward(y, p)
	y = n.Head.forward(y, p)
	return F.Sigmoid(y), nil
}
