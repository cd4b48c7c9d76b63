package pamixer

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/jfreymuth/pamixer/proto"
)

// Kind identifies one of the five cached collections.
type Kind int

const (
	KindSink Kind = iota
	KindSource
	KindInput
	KindSourceOutput
	KindCard

	numKinds = 5
)

// Kinds lists every kind in display order.
var Kinds = [numKinds]Kind{KindSink, KindSource, KindInput, KindSourceOutput, KindCard}

func (k Kind) String() string {
	switch k {
	case KindSink:
		return "sink"
	case KindSource:
		return "source"
	case KindInput:
		return "sink-input"
	case KindSourceOutput:
		return "source-output"
	case KindCard:
		return "card"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// kindOf maps a subscription facility to a cached kind.
func kindOf(facility proto.SubscriptionEventType) (Kind, bool) {
	switch facility {
	case proto.EventSink:
		return KindSink, true
	case proto.EventSource:
		return KindSource, true
	case proto.EventSinkInput:
		return KindInput, true
	case proto.EventSourceOutput:
		return KindSourceOutput, true
	case proto.EventCard:
		return KindCard, true
	}
	return 0, false
}

// maxNameLength is the byte limit for Object.Name.
const maxNameLength = 255

// An Object is a cached sink, source, sink input, source output or card.
type Object struct {
	Kind     Kind
	Index    uint32
	Channels int
	Volume   proto.Volume
	Mute     bool
	Name     string
	// Peak is the last metered level in [0, 1].
	Peak float32
	// MonitorIndex is the source whose audio feeds this object's meter.
	MonitorIndex uint32
	// Metered reports whether the object owned a metering stream when this copy was taken.
	Metered bool

	// Sinks and sources only.
	ServerName string
	CardIndex  uint32

	Stream *StreamInfo
	Card   *CardInfo

	monitor *MonitorStream
}

// StreamInfo holds the fields of sink inputs and source outputs.
type StreamInfo struct {
	// Device is the sink of a sink input or the source of a source output.
	Device  uint32
	AppName string
	AppID   string
	Corked  bool
}

type CardInfo struct {
	ActiveProfile Profile
	Profiles      []Profile
}

type Profile struct {
	Name        string
	Description string
	Available   bool
	Priority    uint32
}

// clone returns a copy that shares no memory with o.
func (o *Object) clone() Object {
	c := *o
	c.Metered = o.monitor != nil
	c.monitor = nil
	if o.Stream != nil {
		s := *o.Stream
		c.Stream = &s
	}
	if o.Card != nil {
		card := *o.Card
		card.Profiles = append([]Profile(nil), o.Card.Profiles...)
		c.Card = &card
	}
	return c
}

func truncateName(s string) string {
	if len(s) <= maxNameLength {
		return s
	}
	s = s[:maxNameLength]
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func clampPeak(v float32) float32 {
	switch {
	case math.IsNaN(float64(v)), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
