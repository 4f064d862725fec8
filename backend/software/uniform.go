package software

import (
	"encoding/binary"
	"math"
)

// decodeFloat reads the leading float32 of a uniform payload.
func decodeFloat(data []byte) float32 {
	if len(data) < 4 {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data))
}
