package proto

import "bytes"

// Well-known property keys.
const (
	PropApplicationName     = "application.name"
	PropApplicationID       = "application.id"
	PropApplicationIconName = "application.icon_name"
	PropApplicationPID      = "application.process.id"
	PropApplicationBinary   = "application.process.binary"
	PropMediaName           = "media.name"
	PropDeviceDescription   = "device.description"
	PropWindowX11Display    = "window.x11.display"
)

// A PropList maps property keys to raw values.
// String values are stored NUL-terminated, as the server sends them.
type PropList map[string]PropListEntry

type PropListEntry []byte

// PropListString encodes s as a property value.
func PropListString(s string) PropListEntry {
	e := make(PropListEntry, len(s)+1)
	copy(e, s)
	return e
}

// String returns the value as a string, without the terminating NUL.
func (e PropListEntry) String() string {
	return string(bytes.TrimSuffix(e, []byte{0}))
}

// Get returns the string value of key, or "" if it is not set.
func (p PropList) Get(key string) string {
	if e, ok := p[key]; ok {
		return e.String()
	}
	return ""
}

// Set stores a string value.
func (p PropList) Set(key, value string) {
	p[key] = PropListString(value)
}
