package weights

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/deoldify/internal/tensor"
)

var testSchedule = []Entry{
	{Name: "conv.weight", Shape: tensor.Shape{2, 1, 1, 2}},
	{Name: "bn.weight", Shape: tensor.Shape{2}},
	{Name: "gamma", Shape: tensor.Shape{1}},
}

func float32Blob(values ...float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func TestLoad_Float32(t *testing.T) {
	blob := float32Blob(1, 2, 3, 4, 0.5, -0.5, 0.25)

	s, err := Load(bytes.NewReader(blob), testSchedule, Float32)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 7, s.NumParams())
	assert.Equal(t, []string{"conv.weight", "bn.weight", "gamma"}, s.Names())

	conv, ok := s.Get("conv.weight")
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{2, 1, 1, 2}, conv.Shape())
	assert.Equal(t, float32(3), conv.At(1, 0, 0, 0))

	gamma, _ := s.Get("gamma")
	assert.Equal(t, []float32{0.25}, gamma.Data())

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestLoad_Float16(t *testing.T) {
	// 1.0, -2.0, 0.5, 65504 (max half), 0, 1.5, 0.099975586
	halves := []uint16{0x3C00, 0xC000, 0x3800, 0x7BFF, 0x0000, 0x3E00, 0x2E66}
	blob := make([]byte, 2*len(halves))
	for i, h := range halves {
		binary.LittleEndian.PutUint16(blob[2*i:], h)
	}

	s, err := Load(bytes.NewReader(blob), testSchedule, Float16)
	require.NoError(t, err)

	conv, _ := s.Get("conv.weight")
	assert.Equal(t, []float32{1, -2, 0.5, 65504}, conv.Data())
	gamma, _ := s.Get("gamma")
	assert.InDelta(t, 0.1, gamma.Data()[0], 1e-3)
}

func TestLoad_Truncated(t *testing.T) {
	for _, cut := range []int{0, 3, 16, 27} {
		blob := float32Blob(1, 2, 3, 4, 5, 6, 7)[:cut]

		s, err := Load(bytes.NewReader(blob), testSchedule, Float32)
		assert.Nil(t, s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTruncated), "cut=%d: %v", cut, err)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	}
}

func TestLoad_TruncatedNamesEntry(t *testing.T) {
	blob := float32Blob(1, 2, 3, 4, 5)

	_, err := Load(bytes.NewReader(blob), testSchedule, Float32)
	var ee *EntryError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.Index)
	assert.Equal(t, "bn.weight", ee.Name)
}

func TestLoad_TrailingData(t *testing.T) {
	blob := append(float32Blob(1, 2, 3, 4, 5, 6, 7), 0)

	_, err := Load(bytes.NewReader(blob), testSchedule, Float32)
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestLoad_InvalidSchedule(t *testing.T) {
	dup := []Entry{{Name: "a", Shape: tensor.Shape{1}}, {Name: "a", Shape: tensor.Shape{1}}}
	_, err := Load(bytes.NewReader(float32Blob(1, 2)), dup, Float32)
	assert.ErrorIs(t, err, ErrDuplicateName)

	bad := []Entry{{Name: "a", Shape: tensor.Shape{2, 0}}}
	_, err = Load(bytes.NewReader(nil), bad, Float32)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLoad_ReadError(t *testing.T) {
	_, err := Load(failingReader{}, testSchedule, Float32)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTruncated)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestWrite_RoundTrip(t *testing.T) {
	values := []float32{1, 2, 3, 4, 0.5, -0.5, 0.25}
	s, err := Load(bytes.NewReader(float32Blob(values...)), testSchedule, Float32)
	require.NoError(t, err)

	tests := []struct {
		precision Precision
		size      int
	}{
		{Float32, 28},
		{Float16, 14},
	}
	for _, tt := range tests {
		t.Run(tt.precision.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, s, tt.precision))
			assert.Equal(t, tt.size, buf.Len())

			back, err := Load(&buf, testSchedule, tt.precision)
			require.NoError(t, err)
			for _, name := range s.Names() {
				want, _ := s.Get(name)
				got, _ := back.Get(name)
				assert.Equal(t, want.Data(), got.Data(), name)
			}
		})
	}
}

func TestNumParams(t *testing.T) {
	assert.Equal(t, 7, NumParams(testSchedule))
	assert.Equal(t, 0, NumParams(nil))
}
