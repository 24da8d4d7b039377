// Package tensor provides the dense float32 tensor used by the inference
// operators.
//
// Tensors are row-major and single-batch: feature maps are (C,H,W),
// flattened attention operands are (C,N) and weights keep the rank they
// have on disk. The invariant len(Data()) == Shape().NumElements() holds for
// every tensor built by this package.
package tensor

// Tensor is a dense row-major float32 array.
type Tensor struct {
	shape Shape
	data  []float32
}

// New allocates a zero-filled tensor with the given dimensions.
// It panics with a *ShapeError if any dimension is not positive.
func New(dims ...int) *Tensor {
	shape := Shape(dims).Clone()
	if err := shape.Validate(); err != nil {
		panic(Errorf("new", "%v", err))
	}
	return &Tensor{shape: shape, data: make([]float32, shape.NumElements())}
}

// FromSlice wraps data without copying.
func FromSlice(data []float32, dims ...int) (*Tensor, error) {
	shape := Shape(dims).Clone()
	if err := shape.Validate(); err != nil {
		return nil, Errorf("from_slice", "%v", err)
	}
	if shape.NumElements() != len(data) {
		return nil, Errorf("from_slice", "shape %v needs %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	return &Tensor{shape: shape, data: data}, nil
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice(data []float32, dims ...int) *Tensor {
	t, err := FromSlice(data, dims...)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor dimensions. The caller must not modify it.
func (t *Tensor) Shape() Shape { return t.shape }

// Data returns the backing buffer.
func (t *Tensor) Data() []float32 { return t.data }

// NumElements returns the number of stored values.
func (t *Tensor) NumElements() int { return len(t.data) }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Dim returns dimension i.
func (t *Tensor) Dim(i int) int { return t.shape[i] }

// Reshape changes the dimensions in place, keeping the buffer.
// It panics with a *ShapeError if the element count would change.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	shape := Shape(dims).Clone()
	if err := shape.Validate(); err != nil {
		panic(Errorf("reshape", "%v", err))
	}
	if shape.NumElements() != len(t.data) {
		panic(Errorf("reshape", "cannot reshape %v to %v", t.shape, shape))
	}
	t.shape = shape
	return t
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// At returns the element at the given multi-dimensional index.
func (t *Tensor) At(idx ...int) float32 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given multi-dimensional index.
func (t *Tensor) Set(v float32, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(Errorf("index", "got %d indices for shape %v", len(idx), t.shape))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.shape[i] {
			panic(Errorf("index", "index %d out of range for dimension %d of %v", x, i, t.shape))
		}
		off = off*t.shape[i] + x
	}
	return off
}
