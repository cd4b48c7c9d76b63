package proto

// Volume is a software volume, where VolumeNorm is 100% and VolumeMuted is silence.
type Volume uint32

const (
	VolumeMuted Volume = 0
	VolumeNorm  Volume = 0x10000
	VolumeMax   Volume = 0x7FFFFFFF
)

// Percent returns the volume relative to VolumeNorm, rounded to the nearest integer.
func (v Volume) Percent() int {
	return int((uint64(v)*100 + uint64(VolumeNorm)/2) / uint64(VolumeNorm))
}
