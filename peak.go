package pamixer

// A fragmentReader gives access to the oldest buffered fragment of a record stream.
type fragmentReader interface {
	// Peek returns the oldest fragment. A nil slice with length 0 means nothing is buffered,
	// a nil slice with a positive length is a hole of that many bytes.
	Peek() (data []byte, length int)
	// Drop discards the fragment returned by Peek.
	Drop()
}

type peekResult int

const (
	peekEmpty peekResult = iota
	peekHole
	peekMalformed
	peekSample
)

func (r peekResult) String() string {
	switch r {
	case peekEmpty:
		return "empty"
	case peekHole:
		return "hole"
	case peekMalformed:
		return "malformed"
	}
	return "sample"
}

// readPeak consumes at most one fragment and returns its last sample, clamped to [0, 1].
// Only peekSample carries a level. Holes and malformed fragments are dropped.
func readPeak(r fragmentReader) (float32, peekResult) {
	data, length := r.Peek()
	if data == nil {
		if length == 0 {
			return 0, peekEmpty
		}
		r.Drop()
		return 0, peekHole
	}
	if length == 0 || length != len(data) || length%meterSampleSize != 0 {
		r.Drop()
		return 0, peekMalformed
	}
	v := lastSample(data)
	r.Drop()
	return clampPeak(v), peekSample
}
