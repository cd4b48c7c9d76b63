package proto

// Undefined is used by the server for "no index" and by requests for
// "let the server decide".
const Undefined = 0xFFFFFFFF

const (
	FormatUint8     = 0
	FormatInt16LE   = 3
	FormatInt16BE   = 4
	FormatFloat32LE = 5
	FormatFloat32BE = 6
	FormatInt32LE   = 7
	FormatInt32BE   = 8
)

const (
	ChannelMono       = 0
	ChannelLeft       = 1
	ChannelRight      = 2
	ChannelCenter     = 3
	ChannelRearCenter = 4
	ChannelRearLeft   = 5
	ChannelRearRight  = 6
	ChannelLFE        = 7
)

const (
	EncodingPCM = 1
)

type SampleSpec struct {
	Format   byte
	Channels byte
	Rate     uint32
}

// BytesPerSample returns the size of one sample in this sample format,
// or 0 for unknown formats.
func (s SampleSpec) BytesPerSample() int {
	switch s.Format {
	case FormatUint8:
		return 1
	case FormatInt16LE, FormatInt16BE:
		return 2
	case FormatFloat32LE, FormatFloat32BE, FormatInt32LE, FormatInt32BE:
		return 4
	}
	return 0
}

type Microseconds uint64

type ChannelMap []byte

type ChannelVolumes []uint32

// Avg returns the arithmetic mean of all channel volumes.
func (v ChannelVolumes) Avg() Volume {
	if len(v) == 0 {
		return VolumeMuted
	}
	var sum uint64
	for _, c := range v {
		sum += uint64(c)
	}
	return Volume(sum / uint64(len(v)))
}

type Time struct {
	Seconds      uint32
	Microseconds uint32
}

type FormatInfo struct {
	Encoding   byte
	Properties PropList
}
