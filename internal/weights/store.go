// Package weights reads and writes the flat weight files of the
// colorization network.
//
// A weight file has no header. It is the concatenation, in schedule order,
// of every parameter tensor's values in row-major order, each value a
// little-endian float32 (Float32) or binary16 (Float16). The schedule, an
// ordered list of names and shapes, is therefore part of the format and is
// supplied by the caller.
package weights

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/born-ml/deoldify/internal/tensor"
)

// Entry names one parameter of a schedule.
type Entry struct {
	Name  string
	Shape tensor.Shape
}

// NumParams returns the total number of values described by a schedule.
func NumParams(schedule []Entry) int {
	n := 0
	for _, e := range schedule {
		n += e.Shape.NumElements()
	}
	return n
}

// Store maps parameter names to tensors. It is not modified after Load
// returns and may be shared between goroutines.
type Store struct {
	tensors map[string]*tensor.Tensor
	order   []string
}

// NewStore builds a store from tensors in the given order.
func NewStore(names []string, tensors []*tensor.Tensor) (*Store, error) {
	if len(names) != len(tensors) {
		return nil, fmt.Errorf("weights: %d names for %d tensors", len(names), len(tensors))
	}
	s := &Store{tensors: make(map[string]*tensor.Tensor, len(names)), order: make([]string, 0, len(names))}
	for i, name := range names {
		if _, dup := s.tensors[name]; dup {
			return nil, &EntryError{Index: i, Name: name, Err: ErrDuplicateName}
		}
		s.tensors[name] = tensors[i]
		s.order = append(s.order, name)
	}
	return s, nil
}

// Get returns the tensor stored under name.
func (s *Store) Get(name string) (*tensor.Tensor, bool) {
	t, ok := s.tensors[name]
	return t, ok
}

// Len returns the number of tensors.
func (s *Store) Len() int { return len(s.order) }

// Names returns the parameter names in load order.
func (s *Store) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// NumParams returns the total number of stored values.
func (s *Store) NumParams() int {
	n := 0
	for _, t := range s.tensors {
		n += t.NumElements()
	}
	return n
}

// Load reads one tensor per schedule entry from r.
//
// Load fails with ErrTruncated if r ends early and with ErrTrailingData if
// bytes remain after the last entry. No partially filled store is returned.
func Load(r io.Reader, schedule []Entry, precision Precision) (*Store, error) {
	if err := validateSchedule(schedule); err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, 1<<20)
	size := precision.Size()
	var buf []byte

	names := make([]string, len(schedule))
	tensors := make([]*tensor.Tensor, len(schedule))
	for i, e := range schedule {
		t := tensor.New(e.Shape...)
		need := t.NumElements() * size
		if cap(buf) < need {
			buf = make([]byte, need)
		}
		buf = buf[:need]

		if _, err := io.ReadFull(br, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, &EntryError{Index: i, Name: e.Name, Err: ErrTruncated}
			}
			return nil, &EntryError{Index: i, Name: e.Name, Err: fmt.Errorf("failed to read: %w", err)}
		}
		precision.decode(t.Data(), buf)

		names[i] = e.Name
		tensors[i] = t
	}

	if _, err := br.ReadByte(); err == nil {
		return nil, ErrTrailingData
	} else if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to check for trailing data: %w", err)
	}

	return NewStore(names, tensors)
}

func validateSchedule(schedule []Entry) error {
	seen := make(map[string]struct{}, len(schedule))
	for i, e := range schedule {
		if _, dup := seen[e.Name]; dup {
			return &EntryError{Index: i, Name: e.Name, Err: ErrDuplicateName}
		}
		seen[e.Name] = struct{}{}
		if len(e.Shape) == 0 || e.Shape.Validate() != nil {
			return &EntryError{Index: i, Name: e.Name, Err: fmt.Errorf("%w: %v", ErrInvalidShape, e.Shape)}
		}
	}
	return nil
}
