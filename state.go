package pamixer

import "fmt"

// State is the connection state of a Session.
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateAuthorizing
	StateSettingName
	StateReady
	StateFailed
	StateTerminated
)

var stateNames = [...]string{
	StateUnconnected: "unconnected",
	StateConnecting:  "connecting",
	StateAuthorizing: "authorizing",
	StateSettingName: "setting-name",
	StateReady:       "ready",
	StateFailed:      "failed",
	StateTerminated:  "terminated",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the session can no longer change state.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateTerminated
}
