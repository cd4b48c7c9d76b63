package pamixer

import (
	"log/slog"

	"github.com/jfreymuth/pamixer/proto"
)

// subscriptionMask is the set of facilities a ready session listens to.
const subscriptionMask = proto.SubscriptionMaskSink |
	proto.SubscriptionMaskSource |
	proto.SubscriptionMaskSinkInput |
	proto.SubscriptionMaskSourceOutput

// dispatcher routes server messages into the cache.
// All methods run on the main loop.
type dispatcher struct {
	cache   *Cache
	conn    requester
	post    func(func()) bool
	log     *slog.Logger
	metrics *Metrics
}

func (d *dispatcher) message(msg interface{}) {
	switch msg := msg.(type) {
	case *proto.SubscribeEvent:
		d.event(msg)
	case *proto.DataPacket:
		d.cache.meterData(msg)
	case *proto.RecordStreamKilled:
		d.cache.meterKilled(msg.StreamIndex)
	case *proto.RecordStreamMoved:
		// Metering streams are created with NoMove, so this should not happen.
		d.log.Warn("metering stream moved", "stream", msg.StreamIndex, "dest", msg.DestIndex)
	case *proto.RecordStreamSuspended:
		d.log.Debug("metering stream suspended", "stream", msg.StreamIndex, "suspended", msg.Suspended)
	}
}

// event handles one subscription event.
// Removals are applied directly, new and changed objects are fetched by index.
func (d *dispatcher) event(ev *proto.SubscribeEvent) {
	d.metrics.event(ev.Event.FacilityName(), ev.Event.TypeName())
	kind, ok := kindOf(ev.Event.GetFacility())
	if !ok {
		return
	}
	switch ev.Event.GetType() {
	case proto.EventRemove:
		d.cache.Remove(kind, ev.Index)
	case proto.EventNew, proto.EventChange:
		d.fetch(kind, ev.Index)
	}
}

func (d *dispatcher) fetch(kind Kind, index uint32) {
	switch kind {
	case KindSink:
		reply := &proto.GetSinkInfoReply{}
		d.request(kind, index, &proto.GetSinkInfo{SinkIndex: index}, reply, func() {
			d.cache.UpsertSink(reply)
		})
	case KindSource:
		reply := &proto.GetSourceInfoReply{}
		d.request(kind, index, &proto.GetSourceInfo{SourceIndex: index}, reply, func() {
			d.cache.UpsertSource(reply)
		})
	case KindInput:
		reply := &proto.GetSinkInputInfoReply{}
		d.request(kind, index, &proto.GetSinkInputInfo{SinkInputIndex: index}, reply, func() {
			d.cache.UpsertInput(reply)
		})
	case KindSourceOutput:
		reply := &proto.GetSourceOutputInfoReply{}
		d.request(kind, index, &proto.GetSourceOutputInfo{SourceOutputIndex: index}, reply, func() {
			d.cache.UpsertSourceOutput(reply)
		})
	case KindCard:
		reply := &proto.GetCardInfoReply{}
		d.request(kind, index, &proto.GetCardInfo{CardIndex: index}, reply, func() {
			d.cache.UpsertCard(reply)
		})
	}
}

// enumerate requests the full lists. Sinks are listed before sink inputs,
// so inputs find their sink's monitor.
func (d *dispatcher) enumerate() {
	cards := &proto.GetCardInfoListReply{}
	d.request(KindCard, proto.Undefined, &proto.GetCardInfoList{}, cards, func() {
		for _, info := range *cards {
			d.cache.UpsertCard(info)
		}
	})
	sources := &proto.GetSourceInfoListReply{}
	d.request(KindSource, proto.Undefined, &proto.GetSourceInfoList{}, sources, func() {
		for _, info := range *sources {
			d.cache.UpsertSource(info)
		}
	})
	sinks := &proto.GetSinkInfoListReply{}
	d.request(KindSink, proto.Undefined, &proto.GetSinkInfoList{}, sinks, func() {
		for _, info := range *sinks {
			d.cache.UpsertSink(info)
		}
	})
	inputs := &proto.GetSinkInputInfoListReply{}
	d.request(KindInput, proto.Undefined, &proto.GetSinkInputInfoList{}, inputs, func() {
		for _, info := range *inputs {
			d.cache.UpsertInput(info)
		}
	})
	outputs := &proto.GetSourceOutputInfoListReply{}
	d.request(KindSourceOutput, proto.Undefined, &proto.GetSourceOutputInfoList{}, outputs, func() {
		for _, info := range *outputs {
			d.cache.UpsertSourceOutput(info)
		}
	})
}

// request sends req without waiting. On success, apply runs on the main loop.
// Errors are expected when an object vanished before its fetch was served.
func (d *dispatcher) request(kind Kind, index uint32, req proto.RequestArgs, reply proto.Reply, apply func()) {
	d.conn.RequestAsync(req, reply, func(err error) {
		d.post(func() {
			if err != nil {
				d.metrics.fetchFailed(kind)
				d.log.Debug("fetch failed",
					"kind", kind.String(),
					"index", index,
					"error", err)
				return
			}
			apply()
		})
	})
}
