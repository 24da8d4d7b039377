// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package colorize

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/born-ml/deoldify/internal/imageio"
	"github.com/born-ml/deoldify/internal/model"
	"github.com/born-ml/deoldify/internal/pipeline"
	"github.com/born-ml/deoldify/internal/weights"
)

// Variant selects the network.
type Variant int

// Network variants.
const (
	Stable Variant = iota
	Artistic
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case Stable:
		return "stable"
	case Artistic:
		return "artistic"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant maps "stable" or "artistic" (any case) to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stable":
		return Stable, nil
	case "artistic":
		return Artistic, nil
	default:
		return 0, fmt.Errorf("colorize: unknown variant %q", s)
	}
}

// Precision selects the on-disk weight encoding.
type Precision int

// Weight precisions.
const (
	Full Precision = iota // float32
	Half                  // float16, widened to float32 on load
)

// String returns the precision name.
func (p Precision) String() string {
	if p == Half {
		return "half"
	}
	return "full"
}

// Encoding returns the weight file encoding for p.
func (p Precision) Encoding() weights.Precision {
	if p == Half {
		return weights.Float16
	}
	return weights.Float32
}

// ProgressFunc receives the completion percentage of a colorization, in
// [0, 100], after every convolution.
type ProgressFunc = model.ProgressFunc

// ModelFile returns the weight file name for a variant. Both precisions
// share the name; the precision passed to Initialize decides how the file
// is decoded.
func ModelFile(v Variant) string {
	if v == Artistic {
		return "Artistic.model"
	}
	return "Stable.model"
}

// ModelsPresent reports whether dir holds a non-empty weight file for v.
func ModelsPresent(dir string, v Variant) bool {
	info, err := os.Stat(filepath.Join(dir, ModelFile(v)))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// DefaultModelsDir returns the "models" directory next to the executable.
func DefaultModelsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "models"
	}
	return filepath.Join(filepath.Dir(exe), "models")
}

// Option configures an Engine.
type Option func(*Engine)

// WithModelsDir sets the directory weight files are read from.
func WithModelsDir(dir string) Option {
	return func(e *Engine) { e.modelsDir = dir }
}

// WithScale divides every layer width by div, rounding up. Weight files
// must have been produced for the same scale; full-size weights use 1.
// Reduced networks are meant for tests and smoke runs.
func WithScale(div int) Option {
	return func(e *Engine) { e.scale = div }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logr.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// loaded is one initialized variant. It is never modified once published.
type loaded struct {
	variant   Variant
	precision Precision
	net       *model.Network
	colorizer *pipeline.Colorizer
}

// Engine colorizes images with one loaded network variant.
//
// Colorize and ColorizeFile may run concurrently with each other and with
// Initialize; a call in flight keeps using the network it started with.
type Engine struct {
	modelsDir string
	log       logr.Logger
	scale     int
	arches    map[Variant]model.Arch

	mu      sync.RWMutex
	current *loaded
}

// New returns an uninitialized engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		modelsDir: DefaultModelsDir(),
		log:       logr.Discard(),
		scale:     1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.arches = map[Variant]model.Arch{Stable: model.Stable, Artistic: model.Artistic}
	if e.scale > 1 {
		for v, a := range e.arches {
			e.arches[v] = a.Scaled(e.scale)
		}
	}
	return e
}

// Initialize loads and binds the weights of variant v stored with
// precision p, replacing whatever was loaded before. If it fails the engine
// is left uninitialized.
func (e *Engine) Initialize(v Variant, p Precision) error {
	l, err := e.load(v, p)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.current = nil
		return err
	}
	e.current = l
	return nil
}

func (e *Engine) load(v Variant, p Precision) (*loaded, error) {
	arch, ok := e.arches[v]
	if !ok {
		return nil, fmt.Errorf("colorize: unknown variant %v", v)
	}

	start := time.Now()
	path := filepath.Join(e.modelsDir, ModelFile(v))
	//nolint:gosec // G304: the models directory is operator supplied
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFile, err)
	}
	defer f.Close()

	store, err := weights.Load(f, model.Schedule(arch), p.Encoding())
	if err != nil {
		return nil, fmt.Errorf("colorize: failed to load %s: %w", path, err)
	}
	net, err := model.Bind(arch, store)
	if err != nil {
		return nil, fmt.Errorf("colorize: %w", err)
	}

	e.log.Info("model loaded", "variant", v.String(), "precision", p.String(),
		"parameters", store.NumParams(), "convolutions", net.ConvCount(), "duration", time.Since(start))

	return &loaded{
		variant:   v,
		precision: p,
		net:       net,
		colorizer: &pipeline.Colorizer{Net: net, Log: e.log.WithValues("variant", v.String())},
	}, nil
}

func (e *Engine) snapshot() *loaded {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Loaded returns the initialized variant and precision. ok is false before
// a successful Initialize.
func (e *Engine) Loaded() (v Variant, p Precision, ok bool) {
	l := e.snapshot()
	if l == nil {
		return 0, 0, false
	}
	return l.variant, l.precision, true
}

// ConvCount returns the number of progress reports per colorization, or 0
// when uninitialized.
func (e *Engine) ConvCount() int {
	if l := e.snapshot(); l != nil {
		return l.net.ConvCount()
	}
	return 0
}

// Colorize returns a colorized copy of img with the same dimensions.
// progress may be nil.
func (e *Engine) Colorize(img image.Image, progress ProgressFunc) (*image.RGBA, error) {
	l := e.snapshot()
	if l == nil {
		return nil, ErrNotInitialized
	}
	return l.colorizer.Colorize(img, progress)
}

// ColorizeFile colorizes the image at inPath and writes the result to
// outPath. The output encoding follows the extension of outPath: .jpg and
// .jpeg write JPEG, .png PNG, .webp WebP and anything else BMP.
func (e *Engine) ColorizeFile(inPath, outPath string, progress ProgressFunc) error {
	if e.snapshot() == nil {
		return ErrNotInitialized
	}

	img, err := imageio.Load(inPath)
	if err != nil {
		return &IOError{Op: "decode", Path: inPath, Err: err}
	}

	out, err := e.Colorize(img, progress)
	if err != nil {
		return err
	}

	if err := imageio.Save(outPath, out); err != nil {
		return &IOError{Op: "encode", Path: outPath, Err: err}
	}
	return nil
}
