package model

import (
	"errors"
	"fmt"
	"sort"

	F "github.com/born-ml/deoldify/internal/functional"
	"github.com/born-ml/deoldify/internal/tensor"
	"github.com/born-ml/deoldify/internal/weights"
)

// Binding errors.
var (
	ErrMissingParam = errors.New("parameter missing from weight store")
	ErrParamShape   = errors.New("parameter shape mismatch")
	ErrUnusedParam  = errors.New("weight store has parameters the network does not use")
)

// paramSource supplies the tensor for one named parameter.
type paramSource interface {
	param(name string, shape tensor.Shape) (*tensor.Tensor, error)
}

// storeSource resolves parameters from a loaded store.
type storeSource struct {
	store *weights.Store
	used  map[string]struct{}
}

func (s *storeSource) param(name string, shape tensor.Shape) (*tensor.Tensor, error) {
	t, ok := s.store.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, name)
	}
	if !t.Shape().Equal(shape) {
		return nil, fmt.Errorf("%w: %s is %v, want %v", ErrParamShape, name, t.Shape(), shape)
	}
	s.used[name] = struct{}{}
	return t, nil
}

// recorder collects the schedule without allocating tensors.
type recorder struct {
	entries []weights.Entry
}

func (r *recorder) param(name string, shape tensor.Shape) (*tensor.Tensor, error) {
	r.entries = append(r.entries, weights.Entry{Name: name, Shape: shape})
	return nil, nil
}

// binder walks an architecture in checkpoint order, asking src for every
// parameter. The first error sticks; later lookups are skipped.
type binder struct {
	src   paramSource
	err   error
	convs int
}

func (b *binder) param(name string, dims ...int) *tensor.Tensor {
	if b.err != nil {
		return nil
	}
	t, err := b.src.param(name, tensor.Shape(dims))
	if err != nil {
		b.err = err
	}
	return t
}

func (b *binder) conv(name string, out, in, k, stride, pad int, bias bool) *Conv {
	c := &Conv{Params: F.Conv2dParams{PadH: pad, PadW: pad, StrideH: stride, StrideW: stride}}
	if bias {
		c.Bias = b.param(name+".bias", out)
	}
	c.Weight = b.param(name+".weight", out, in, k, k)
	b.convs++
	return c
}

func (b *binder) batchNorm(name string, c int) *BatchNorm {
	bn := &BatchNorm{}
	bn.Weight = b.param(name+".weight", c)
	bn.Bias = b.param(name+".bias", c)
	bn.Mean = b.param(name+".running_mean", c)
	bn.Var = b.param(name+".running_var", c)
	return bn
}

func (b *binder) residual(a Arch, name string, in, planes int, strided bool) (*ResidualBlock, int) {
	stride := 1
	if strided {
		stride = 2
	}
	out := planes * a.Expansion
	blk := &ResidualBlock{}

	switch a.Block {
	case Bottleneck:
		blk.Conv1 = b.conv(name+".conv1", planes, in, 1, 1, 0, false)
		blk.BN1 = b.batchNorm(name+".bn1", planes)
		blk.Conv2 = b.conv(name+".conv2", planes, planes, 3, stride, 1, false)
		blk.BN2 = b.batchNorm(name+".bn2", planes)
		blk.Conv3 = b.conv(name+".conv3", out, planes, 1, 1, 0, false)
		blk.BN3 = b.batchNorm(name+".bn3", out)
	default:
		blk.Conv1 = b.conv(name+".conv1", planes, in, 3, stride, 1, false)
		blk.BN1 = b.batchNorm(name+".bn1", planes)
		blk.Conv2 = b.conv(name+".conv2", out, planes, 3, 1, 1, false)
		blk.BN2 = b.batchNorm(name+".bn2", out)
	}

	if strided || in != out {
		blk.Downsample = b.conv(name+".downsample.0", out, in, 1, stride, 0, false)
		blk.DownsampleBN = b.batchNorm(name+".downsample.1", out)
	}
	return blk, out
}

func (b *binder) attention(name string, c int) *SelfAttention {
	qk := max(1, c/8)
	att := &SelfAttention{}
	if gamma := b.param(name+".gamma", 1); gamma != nil {
		att.Gamma = gamma.Data()[0]
	}
	att.Query = b.conv(name+".query", qk, c, 1, 1, 0, false)
	att.Key = b.conv(name+".key", qk, c, 1, 1, 0, false)
	att.Value = b.conv(name+".value", c, c, 1, 1, 0, false)
	return att
}

func (b *binder) decoder(a Arch, name string, in, skip int, st DecoderStage) *DecoderBlock {
	d := &DecoderBlock{
		Shuffle: &ShuffleBlock{
			Conv: b.conv(name+".shuf.conv.0", 4*st.Up, in, 1, 1, 0, false),
			BN:   b.batchNorm(name+".shuf.conv.1", 4*st.Up),
		},
		SkipBN: b.batchNorm(name+".bn", skip),
	}

	attnName := name + ".conv.3"
	switch a.Decoder {
	case Wide:
		d.Convs = []*Conv{b.conv(name+".conv.0", st.Out, st.Up+skip, 3, 1, 1, false)}
		d.BNs = []*BatchNorm{b.batchNorm(name+".conv.2", st.Out)}
	default:
		d.Convs = []*Conv{
			b.conv(name+".conv1.0", st.Out, st.Up+skip, 3, 1, 1, false),
		}
		d.BNs = []*BatchNorm{b.batchNorm(name+".conv1.2", st.Out)}
		d.Convs = append(d.Convs, b.conv(name+".conv2.0", st.Out, st.Out, 3, 1, 1, false))
		d.BNs = append(d.BNs, b.batchNorm(name+".conv2.2", st.Out))
		attnName = name + ".conv2.3"
	}

	if st.SelfAttention {
		d.Attention = b.attention(attnName, st.Out)
	}
	return d
}

// network walks the whole architecture. The call order here is the
// parameter order of the weight files.
func (b *binder) network(a Arch) *Network {
	n := &Network{Arch: a}

	n.StemConv = b.conv("layers.0.0", a.Stem, 3, 7, 2, 3, false)
	n.StemBN = b.batchNorm("layers.0.1", a.Stem)

	in := a.Stem
	for s := range a.Depths {
		blocks := make([]*ResidualBlock, a.Depths[s])
		for i := range blocks {
			name := fmt.Sprintf("layers.0.%d.%d", s+4, i)
			blocks[i], in = b.residual(a, name, in, a.Planes[s], s > 0 && i == 0)
		}
		n.Encoder[s] = blocks
	}

	n.EncoderBN = b.batchNorm("layers.1", in)
	n.Middle = &MiddleBlock{
		Conv1: b.conv("layers.3.0.0", 2*in, in, 3, 1, 1, false),
		BN1:   b.batchNorm("layers.3.0.2", 2*in),
		Conv2: b.conv("layers.3.1.0", in, 2*in, 3, 1, 1, false),
		BN2:   b.batchNorm("layers.3.1.2", in),
	}

	for i, st := range a.Stages {
		n.Decoder[i] = b.decoder(a, fmt.Sprintf("layers.%d", i+4), in, a.skipChannels(i), st)
		in = st.Out
	}

	n.Shuffle = &FinalShuffle{Conv: b.conv("layers.8.conv.0", 4*in, in, 1, 1, 0, true)}
	f := in + 3
	n.Refine = &RefineBlock{
		Conv1: b.conv("layers.10.layers.0.0", f, f, 3, 1, 1, true),
		Conv2: b.conv("layers.10.layers.1.0", f, f, 3, 1, 1, true),
	}
	n.Head = b.conv("layers.11.0", 3, f, 1, 1, 0, true)
	return n
}

// Schedule returns the ordered parameter list of a weight file for a.
func Schedule(a Arch) []weights.Entry {
	r := &recorder{}
	(&binder{src: r}).network(a)
	return r.entries
}

// Bind resolves every parameter of a from store. It fails if a parameter is
// missing or has the wrong shape, or if store holds names a does not use.
func Bind(a Arch, store *weights.Store) (*Network, error) {
	src := &storeSource{store: store, used: make(map[string]struct{}, store.Len())}
	b := &binder{src: src}
	n := b.network(a)
	if b.err != nil {
		return nil, fmt.Errorf("failed to bind %s network: %w", a.Name, b.err)
	}

	if len(src.used) != store.Len() {
		var extra []string
		for _, name := range store.Names() {
			if _, ok := src.used[name]; !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		if len(extra) > 3 {
			extra = append(extra[:3], "...")
		}
		return nil, fmt.Errorf("failed to bind %s network: %w: %v", a.Name, ErrUnusedParam, extra)
	}

	n.convs = b.convs
	return n, nil
}
