package functional

import (
	"github.com/born-ml/deoldify/internal/parallel"
	"github.com/born-ml/deoldify/internal/tensor"
)

// PixelShuffle rearranges [C*r*r, H, W] into [C, H*r, W*r]:
//
//	out[c, h*r+i, w*r+j] = in[c*r*r + i*r + j, h, w]
func PixelShuffle(x *tensor.Tensor, r int) *tensor.Tensor {
	cIn, h, w := x.Shape().CHW("pixel_shuffle")
	if r <= 0 || cIn%(r*r) != 0 {
		panic(tensor.Errorf("pixel_shuffle", "channels %d not divisible by factor %d^2", cIn, r))
	}
	c := cIn / (r * r)
	hOut, wOut := h*r, w*r

	out := tensor.New(c, hOut, wOut)
	xd, od := x.Data(), out.Data()

	parallel.For(cIn, func(ci int) {
		oc, sub := ci/(r*r), ci%(r*r)
		i, j := sub/r, sub%r
		src := xd[ci*h*w : (ci+1)*h*w]
		dst := od[oc*hOut*wOut : (oc+1)*hOut*wOut]
		for y := 0; y < h; y++ {
			row := dst[(y*r+i)*wOut:]
			for u := 0; u < w; u++ {
				row[u*r+j] = src[y*w+u]
			}
		}
	}, channelConfig())
	return out
}

// PixelUnshuffle is the inverse of PixelShuffle: [C, H*r, W*r] -> [C*r*r, H, W].
func PixelUnshuffle(x *tensor.Tensor, r int) *tensor.Tensor {
	c, hIn, wIn := x.Shape().CHW("pixel_unshuffle")
	if r <= 0 || hIn%r != 0 || wIn%r != 0 {
		panic(tensor.Errorf("pixel_unshuffle", "spatial size %dx%d not divisible by factor %d", hIn, wIn, r))
	}
	h, w := hIn/r, wIn/r
	cOut := c * r * r

	out := tensor.New(cOut, h, w)
	xd, od := x.Data(), out.Data()

	parallel.For(cOut, func(co int) {
		ic, sub := co/(r*r), co%(r*r)
		i, j := sub/r, sub%r
		src := xd[ic*hIn*wIn : (ic+1)*hIn*wIn]
		dst := od[co*h*w : (co+1)*h*w]
		for y := 0; y < h; y++ {
			row := src[(y*r+i)*wIn:]
			for u := 0; u < w; u++ {
				dst[y*w+u] = row[u*r+j]
			}
		}
	}, channelConfig())
	return out
}

// RestrictedCat2d concatenates a and b along channels (a first) after
// cropping both to the smaller height and width. The crop keeps the centre:
// a tensor larger by d along an axis drops floor(d/2) leading cells.
func RestrictedCat2d(a, b *tensor.Tensor) *tensor.Tensor {
	ca, ha, wa := a.Shape().CHW("restricted_cat2d")
	cb, hb, wb := b.Shape().CHW("restricted_cat2d")
	h, w := min(ha, hb), min(wa, wb)

	out := tensor.New(ca+cb, h, w)
	od := out.Data()
	copyCropped(od[:ca*h*w], a.Data(), ca, ha, wa, h, w)
	copyCropped(od[ca*h*w:], b.Data(), cb, hb, wb, h, w)
	return out
}

func copyCropped(dst, src []float32, c, hs, ws, h, w int) {
	y0, x0 := (hs-h)/2, (ws-w)/2
	parallel.For(c, func(ch int) {
		s := src[ch*hs*ws : (ch+1)*hs*ws]
		d := dst[ch*h*w : (ch+1)*h*w]
		for y := 0; y < h; y++ {
			copy(d[y*w:(y+1)*w], s[(y+y0)*ws+x0:])
		}
	}, channelConfig())
}
