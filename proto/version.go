package proto

// Version is a protocol version. The upper 16 bits carry capability flags.
type Version uint32

// ClientVersion is the highest protocol version this package speaks.
const ClientVersion Version = 32

func (v Version) Version() int { return int(v & 0xFFFF) }

// Min returns the lower of both versions, keeping only the flags both sides set.
func (v Version) Min(u Version) Version {
	flags := v & u & 0xFFFF0000
	v &= 0xFFFF
	if v > u&0xFFFF {
		v = u & 0xFFFF
	}
	return v | flags
}
