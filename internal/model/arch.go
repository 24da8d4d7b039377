package model

import "fmt"

// BlockKind selects the residual block used by the encoder.
type BlockKind int

const (
	// Bottleneck is the 1x1 -> 3x3 -> 1x1 block with channel expansion.
	Bottleneck BlockKind = iota
	// Basic is the 3x3 -> 3x3 block.
	Basic
)

// DecoderKind selects the convolution stack of the decoder blocks.
type DecoderKind int

const (
	// Wide decoder blocks run one conv+BN stage after the concatenation.
	Wide DecoderKind = iota
	// Deep decoder blocks run two.
	Deep
)

// DecoderStage describes one U-Net decoder block.
type DecoderStage struct {
	Up            int  // Channels after the pixel-shuffle upsampling.
	Out           int  // Channels produced by the block.
	SelfAttention bool // Whether the block ends in self-attention.
}

// Arch describes one network variant. The graph, the weight schedule and the
// convolution count are all derived from it.
type Arch struct {
	Name      string
	Block     BlockKind
	Expansion int    // Stage output channels = Planes[i] * Expansion.
	Stem      int    // Channels of the 7x7 stem convolution.
	Planes    [4]int // Inner width of each encoder stage.
	Depths    [4]int // Residual blocks per encoder stage.
	Decoder   DecoderKind
	Stages    [4]DecoderStage // Decoder blocks, deepest first.
}

// Stable is the ResNet-101 encoder with wide decoder blocks.
var Stable = Arch{
	Name:      "stable",
	Block:     Bottleneck,
	Expansion: 4,
	Stem:      64,
	Planes:    [4]int{64, 128, 256, 512},
	Depths:    [4]int{3, 4, 23, 3},
	Decoder:   Wide,
	Stages: [4]DecoderStage{
		{Up: 512, Out: 512},
		{Up: 512, Out: 512, SelfAttention: true},
		{Up: 512, Out: 512},
		{Up: 256, Out: 256},
	},
}

// Artistic is the ResNet-34 encoder with deep decoder blocks.
var Artistic = Arch{
	Name:      "artistic",
	Block:     Basic,
	Expansion: 1,
	Stem:      64,
	Planes:    [4]int{64, 128, 256, 512},
	Depths:    [4]int{3, 4, 6, 3},
	Decoder:   Deep,
	Stages: [4]DecoderStage{
		{Up: 256, Out: 768},
		{Up: 384, Out: 768, SelfAttention: true},
		{Up: 384, Out: 672},
		{Up: 336, Out: 300},
	},
}

// Scaled returns a copy of a with every channel width divided by div
// (rounded up). Names, depths and the convolution count are unchanged, so a
// scaled architecture runs the same graph on far fewer parameters.
func (a Arch) Scaled(div int) Arch {
	if div <= 1 {
		return a
	}
	s := a
	s.Name = fmt.Sprintf("%s/%d", a.Name, div)
	s.Stem = ceilDiv(a.Stem, div)
	for i := range s.Planes {
		s.Planes[i] = ceilDiv(a.Planes[i], div)
	}
	for i := range s.Stages {
		s.Stages[i].Up = ceilDiv(a.Stages[i].Up, div)
		s.Stages[i].Out = ceilDiv(a.Stages[i].Out, div)
	}
	return s
}

// ConvCount returns the number of convolutions in one forward pass.
func (a Arch) ConvCount() int {
	r := &recorder{}
	b := &binder{src: r}
	b.network(a)
	return b.convs
}

// stageOut returns the channel count produced by encoder stage i.
func (a Arch) stageOut(i int) int {
	return a.Planes[i] * a.Expansion
}

// skipChannels returns the channels of the encoder skip tensor consumed by
// decoder stage i: the outputs of stages 2, 1, 0 and then the stem.
func (a Arch) skipChannels(i int) int {
	if i == 3 {
		return a.Stem
	}
	return a.stageOut(2 - i)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
