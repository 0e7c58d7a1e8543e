package fits

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/warwick-one-metre/superwasp-talon/util"
)

// DefaultBias is the BZERO that recenters signed 16 bit samples into the
// unsigned range, as produced by Apogee, FLI and similar cameras
const DefaultBias = 32768

// Bitpix is the declared on-disk pixel encoding
type Bitpix int

const (
	// Int16 is big-endian signed 16 bit integers
	Int16 Bitpix = 16

	// Int32 is big-endian signed 32 bit integers
	Int32 Bitpix = 32

	// Float32 is big-endian IEEE single precision
	Float32 Bitpix = -32
)

// Valid is true for the encodings the codec reads
func (b Bitpix) Valid() bool {
	return b == Int16 || b == Int32 || b == Float32
}

// Size is the number of bytes per sample
func (b Bitpix) Size() int {
	if b < 0 {
		return int(-b) / 8
	}
	return int(b) / 8
}

// littleEndian is true when the host stores the low byte first
var littleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

func swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// Codec converts pixels between the FITS on-disk encoding and the canonical
// in-memory form: unsigned 16 bit, native byte order.
type Codec struct {
	// Bias is added to signed integer samples when decoding and subtracted
	// when encoding
	Bias int
}

// Default is the codec with DefaultBias
var Default = Codec{Bias: DefaultBias}

// DecodeInt16 converts big-endian signed shorts in src to canonical pixels in dst
func (c Codec) DecodeInt16(dst []uint16, src []byte) {
	for i := range dst {
		v := int16(binary.BigEndian.Uint16(src[2*i:]))
		dst[i] = uint16(int(v) + c.Bias)
	}
}

// DecodeInt32 converts big-endian signed 32 bit integers in src to canonical
// pixels in dst.  The biased value is truncated to 16 bits without a range check.
func (c Codec) DecodeInt32(dst []uint16, src []byte) {
	for i := range dst {
		v := int32(binary.BigEndian.Uint32(src[4*i:]))
		dst[i] = uint16(v + int32(c.Bias))
	}
}

// DecodeFloat32 converts big-endian floats in src to canonical pixels in dst,
// clamped to [0, 65535] and truncated.  No bias is applied.  NaN becomes 0.
func (c Codec) DecodeFloat32(dst []uint16, src []byte) {
	for i := range dst {
		v := float64(math.Float32frombits(binary.BigEndian.Uint32(src[4*i:])))
		if math.IsNaN(v) {
			dst[i] = 0
			continue
		}
		dst[i] = uint16(util.Clamp(v, 0, math.MaxUint16))
	}
}

// Decode converts src, encoded per bitpix, into dst.  src must hold
// len(dst)*bitpix.Size() bytes.
func (c Codec) Decode(bitpix Bitpix, dst []uint16, src []byte) error {
	if len(src) < len(dst)*bitpix.Size() {
		return ErrShortData
	}
	switch bitpix {
	case Int16:
		c.DecodeInt16(dst, src)
	case Int32:
		c.DecodeInt32(dst, src)
	case Float32:
		c.DecodeFloat32(dst, src)
	default:
		return invalid("unsupported BITPIX %d", bitpix)
	}
	return nil
}

// Encode rewrites canonical pixels in place so that their memory holds
// big-endian signed shorts, ready to be written as bytes.  Restore undoes it.
func (c Codec) Encode(pix []uint16) {
	for i, v := range pix {
		p := uint16(int(v) - c.Bias)
		if littleEndian {
			p = swap16(p)
		}
		pix[i] = p
	}
}

// Restore turns pixels left in on-disk form by Encode back into canonical form
func (c Codec) Restore(pix []uint16) {
	for i, v := range pix {
		if littleEndian {
			v = swap16(v)
		}
		pix[i] = uint16(int(v) + c.Bias)
	}
}

// pixelBytes views pix as its underlying bytes
func pixelBytes(pix []uint16) []byte {
	if len(pix) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&pix[0])), 2*len(pix))
}
