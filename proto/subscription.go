package proto

import "fmt"

type SubscriptionMask uint32

const (
	SubscriptionMaskNull         SubscriptionMask = 0x0000
	SubscriptionMaskSink         SubscriptionMask = 0x0001
	SubscriptionMaskSource       SubscriptionMask = 0x0002
	SubscriptionMaskSinkInput    SubscriptionMask = 0x0004
	SubscriptionMaskSourceOutput SubscriptionMask = 0x0008
	SubscriptionMaskModule       SubscriptionMask = 0x0010
	SubscriptionMaskClient       SubscriptionMask = 0x0020
	SubscriptionMaskSampleCache  SubscriptionMask = 0x0040
	SubscriptionMaskServer       SubscriptionMask = 0x0080
	SubscriptionMaskAutoload     SubscriptionMask = 0x0100
	SubscriptionMaskCard         SubscriptionMask = 0x0200
	SubscriptionMaskAll          SubscriptionMask = 0x02FF
)

// SubscriptionEventType packs a facility and an event type, as sent in SubscribeEvent.
type SubscriptionEventType uint32

const (
	EventSink         SubscriptionEventType = 0x0000
	EventSource       SubscriptionEventType = 0x0001
	EventSinkInput    SubscriptionEventType = 0x0002
	EventSourceOutput SubscriptionEventType = 0x0003
	EventModule       SubscriptionEventType = 0x0004
	EventClient       SubscriptionEventType = 0x0005
	EventSampleCache  SubscriptionEventType = 0x0006
	EventServer       SubscriptionEventType = 0x0007
	EventAutoload     SubscriptionEventType = 0x0008
	EventCard         SubscriptionEventType = 0x0009
	EventFacilityMask SubscriptionEventType = 0x000F

	EventNew      SubscriptionEventType = 0x0000
	EventChange   SubscriptionEventType = 0x0010
	EventRemove   SubscriptionEventType = 0x0020
	EventTypeMask SubscriptionEventType = 0x0030
)

func (e SubscriptionEventType) GetFacility() SubscriptionEventType {
	return e & EventFacilityMask
}

func (e SubscriptionEventType) GetType() SubscriptionEventType {
	return e & EventTypeMask
}

// FacilityName returns a short name for the event's facility.
func (e SubscriptionEventType) FacilityName() string {
	switch e.GetFacility() {
	case EventSink:
		return "sink"
	case EventSource:
		return "source"
	case EventSinkInput:
		return "sink-input"
	case EventSourceOutput:
		return "source-output"
	case EventModule:
		return "module"
	case EventClient:
		return "client"
	case EventSampleCache:
		return "sample-cache"
	case EventServer:
		return "server"
	case EventAutoload:
		return "autoload"
	case EventCard:
		return "card"
	}
	return fmt.Sprintf("facility-%d", uint32(e.GetFacility()))
}

// TypeName returns "new", "change" or "remove".
func (e SubscriptionEventType) TypeName() string {
	switch e.GetType() {
	case EventNew:
		return "new"
	case EventChange:
		return "change"
	case EventRemove:
		return "remove"
	}
	return fmt.Sprintf("type-%d", uint32(e.GetType()))
}

func (e SubscriptionEventType) String() string {
	return e.FacilityName() + " " + e.TypeName()
}
