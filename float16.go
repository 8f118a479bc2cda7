package vespadet

import (
	"encoding/binary"

	"github.com/x448/float16"
)

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// convertFloat16BufferToFloat32 converts a float16 buffer to float32 as Go
// has no support for FP16
func convertFloat16BufferToFloat32(float16Buf []uint16, dst []float32) {
	for i, val := range float16Buf {
		dst[i] = f16LookupTable[val]
	}
}

// decodeFloat16LE converts little endian float16 bytes into dst
func decodeFloat16LE(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = f16LookupTable[binary.LittleEndian.Uint16(src[i*2:])]
	}
}

// encodeFloat16LE converts float32 values into little endian float16 bytes
func encodeFloat16LE(src []float32) []byte {

	buf := make([]byte, len(src)*2)

	for i, v := range src {
		binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
	}

	return buf
}
