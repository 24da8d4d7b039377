package weights

import (
	"bufio"
	"fmt"
	"io"
)

// Writer serializes tensors in the flat weight format.
type Writer struct {
	w         *bufio.Writer
	precision Precision
	buf       []byte
	written   int64
}

// NewWriter returns a Writer encoding values with the given precision.
func NewWriter(w io.Writer, precision Precision) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 1<<20), precision: precision}
}

// WriteValues appends raw values.
func (w *Writer) WriteValues(values []float32) error {
	need := len(values) * w.precision.Size()
	if cap(w.buf) < need {
		w.buf = make([]byte, need)
	}
	w.buf = w.buf[:need]
	w.precision.encode(w.buf, values)

	n, err := w.w.Write(w.buf)
	w.written += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write values: %w", err)
	}
	return nil
}

// WriteStore appends every tensor of s in load order.
func (w *Writer) WriteStore(s *Store) error {
	for _, name := range s.order {
		if err := w.WriteValues(s.tensors[name].Data()); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Written returns the number of bytes handed to the underlying writer.
func (w *Writer) Written() int64 { return w.written }

// Flush writes any buffered data.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Write serializes s to w with the given precision.
func Write(w io.Writer, s *Store, precision Precision) error {
	bw := NewWriter(w, precision)
	if err := bw.WriteStore(s); err != nil {
		return err
	}
	return bw.Flush()
}
