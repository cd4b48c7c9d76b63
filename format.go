package pamixer

import (
	"encoding/binary"
	"math"

	"github.com/jfreymuth/pamixer/proto"
)

// Metering streams carry mono float32 little endian samples.
const (
	meterFormat     = proto.FormatFloat32LE
	meterSampleSize = 4
)

// lastSample decodes the final sample of b, which must hold at least one whole sample.
func lastSample(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[len(b)-meterSampleSize:]))
}
