package weights

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Precision is the on-disk element encoding of a weight file.
type Precision int

const (
	// Float32 stores every value as a little-endian IEEE-754 binary32.
	Float32 Precision = iota
	// Float16 stores every value as a little-endian IEEE-754 binary16.
	Float16
)

// Size returns the number of bytes per stored value.
func (p Precision) Size() int {
	if p == Float16 {
		return 2
	}
	return 4
}

// String returns the precision name.
func (p Precision) String() string {
	switch p {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return fmt.Sprintf("Precision(%d)", int(p))
	}
}

// decode widens n packed values from buf into dst.
func (p Precision) decode(dst []float32, buf []byte) {
	if p == Float16 {
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[2*i:])).Float32()
		}
		return
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
}

// encode packs src into buf, rounding to nearest even for Float16.
func (p Precision) encode(buf []byte, src []float32) {
	if p == Float16 {
		for i, v := range src {
			binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(v).Bits())
		}
		return
	}
	for i, v := range src {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
}
