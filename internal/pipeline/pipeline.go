// Package pipeline turns images into network inputs and network outputs
// back into colorized images.
//
// The network sees a fixed-resolution copy of the picture (shorter side
// 256) and predicts colors only; the final image keeps the luminance of the
// full-resolution original and borrows chrominance from the upscaled
// prediction.
package pipeline

import (
	"errors"
	"image"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/image/draw"

	"github.com/born-ml/deoldify/internal/imageio"
	"github.com/born-ml/deoldify/internal/model"
	"github.com/born-ml/deoldify/internal/tensor"
)

// ShortSide is the length the shorter image side is scaled to before
// inference.
const ShortSide = 256

// ImageNet statistics the networks were trained with.
var (
	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Forwarder runs a network on a normalized (3, H, W) tensor.
type Forwarder interface {
	Forward(x *tensor.Tensor, progress model.ProgressFunc) (*tensor.Tensor, error)
}

// TargetSize returns the inference resolution for a w x h image: the
// shorter side becomes ShortSide and the other side scales with it,
// truncated.
func TargetSize(w, h int) (int, int) {
	if w > h {
		return int(float32(ShortSide) / float32(h) * float32(w)), ShortSide
	}
	return ShortSide, int(float32(ShortSide) / float32(w) * float32(h))
}

// Resize scales img to w x h with Catmull-Rom resampling. An image that
// already has the requested size is copied.
func Resize(img image.Image, w, h int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ToTensor converts img into the (3, H, W) network input. Every channel
// carries the same luminance l = (R+G+B)/765, normalized with that
// channel's mean and standard deviation.
func ToTensor(img *image.RGBA) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := tensor.New(3, h, w)
	data := t.Data()
	plane := w * h

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := 0; x < w; x++ {
			px := row[4*x : 4*x+3]
			l := float32(int(px[0])+int(px[1])+int(px[2])) / 765
			i := y*w + x
			for c := 0; c < 3; c++ {
				data[c*plane+i] = (l - Mean[c]) / Std[c]
			}
		}
	}
	return t
}

// FromTensor converts a (3, H, W) sigmoid output into an image: each value
// v maps to ((6v - 3) * std + mean) * 255, clamped and truncated.
func FromTensor(t *tensor.Tensor) (img *image.RGBA, err error) {
	defer tensor.Recover(&err)

	c, h, w := t.Shape().CHW("from_tensor")
	if c != 3 {
		return nil, tensor.Errorf("from_tensor", "expected 3 channels, got %d", c)
	}

	img = image.NewRGBA(image.Rect(0, 0, w, h))
	data := t.Data()
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			for ch := 0; ch < 3; ch++ {
				v := data[ch*plane+i]*6 - 3
				row[4*x+ch] = clampByte((v*Std[ch] + Mean[ch]) * 255)
			}
			row[4*x+3] = 0xff
		}
	}
	return img, nil
}

// Mux keeps the luminance of original and takes chrominance from colorized,
// which is first scaled to the original's size. Conversion uses the
// analog YUV (BT.601) coefficients.
func Mux(original, colorized *image.RGBA) *image.RGBA {
	b := original.Bounds()
	w, h := b.Dx(), b.Dy()
	out := Resize(colorized, w, h)

	for y := 0; y < h; y++ {
		src := original.Pix[y*original.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			o := src[4*x : 4*x+3]
			c := dst[4*x : 4*x+4]

			bwy := 0.299*float32(o[0]) + 0.587*float32(o[1]) + 0.114*float32(o[2])
			r, g, bl := float32(c[0]), float32(c[1]), float32(c[2])
			u := -0.14713*r - 0.28886*g + 0.436*bl
			v := 0.615*r - 0.51499*g - 0.10001*bl

			c[0] = clampByte(bwy + 1.139837398373983740*v)
			c[1] = clampByte(bwy - 0.3946517043589703515*u - 0.5805986066674976801*v)
			c[2] = clampByte(bwy + 2.032110091743119266*u)
			c[3] = 0xff
		}
	}
	return out
}

func clampByte(v float32) uint8 {
	return uint8(min(max(v, 0), 255))
}

// Colorizer runs the whole pipeline around a network.
type Colorizer struct {
	Net Forwarder
	Log logr.Logger
}

// Colorize returns a colorized copy of img with the same size.
func (c *Colorizer) Colorize(img image.Image, progress model.ProgressFunc) (*image.RGBA, error) {
	start := time.Now()
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	original := imageio.ToRGBA(img)
	b := original.Bounds()

	w, h := TargetSize(b.Dx(), b.Dy())
	x := ToTensor(Resize(original, w, h))

	y, err := c.Net.Forward(x, progress)
	if err != nil {
		return nil, err
	}

	colorized, err := FromTensor(y)
	if err != nil {
		return nil, err
	}

	out := Mux(original, colorized)
	c.Log.V(1).Info("colorized image", "width", b.Dx(), "height", b.Dy(),
		"inferenceWidth", w, "inferenceHeight", h, "duration", time.Since(start))
	return out, nil
}
