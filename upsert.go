package pamixer

import (
	"github.com/jfreymuth/pamixer/proto"
)

// UpsertSink creates or updates a sink. Its meter reads the sink's monitor source.
func (c *Cache) UpsertSink(info *proto.GetSinkInfoReply) {
	c.mu.Lock()
	o, created := c.lookupOrCreate(KindSink, info.SinkIndex)
	o.Channels = len(info.ChannelMap)
	o.Volume = info.ChannelVolumes.Avg()
	o.Mute = info.Mute
	o.Name = truncateName(firstNonEmpty(info.Device, info.SinkName))
	o.ServerName = info.SinkName
	o.CardIndex = info.CardIndex

	relinked := o.MonitorIndex != info.MonitorSourceIndex
	o.MonitorIndex = info.MonitorSourceIndex
	if created || relinked || o.monitor == nil {
		c.attach(o, o.MonitorIndex, proto.Undefined)
	}
	c.mu.Unlock()

	c.notifier.notify()
}

// UpsertSource creates or updates a source. Its meter reads the source itself.
func (c *Cache) UpsertSource(info *proto.GetSourceInfoReply) {
	c.mu.Lock()
	o, created := c.lookupOrCreate(KindSource, info.SourceIndex)
	o.Channels = len(info.ChannelMap)
	o.Volume = info.ChannelVolumes.Avg()
	o.Mute = info.Mute
	o.Name = truncateName(firstNonEmpty(info.Device, info.SourceName))
	o.ServerName = info.SourceName
	o.CardIndex = info.CardIndex

	o.MonitorIndex = o.Index
	if created || o.monitor == nil {
		c.attach(o, o.MonitorIndex, proto.Undefined)
	}
	c.mu.Unlock()

	c.notifier.notify()
}

// UpsertInput creates or updates a sink input.
// Its meter reads the monitor of the sink it plays to and is bound to the input,
// so it is recreated whenever the input moves to another sink.
func (c *Cache) UpsertInput(info *proto.GetSinkInputInfoReply) {
	c.mu.Lock()
	o, created := c.lookupOrCreate(KindInput, info.SinkInputIndex)
	if o.Stream == nil {
		o.Stream = &StreamInfo{}
	}
	moved := o.Stream.Device != info.SinkIndex

	o.Channels = len(info.ChannelMap)
	o.Volume = info.ChannelVolumes.Avg()
	o.Mute = info.Muted
	o.Name = truncateName(info.MediaName)
	o.Stream.Device = info.SinkIndex
	o.Stream.AppName = info.Properties.Get(proto.PropApplicationName)
	o.Stream.AppID = info.Properties.Get(proto.PropApplicationID)
	o.Stream.Corked = info.Corked

	if created || moved || o.monitor == nil {
		o.MonitorIndex = proto.Undefined
		if sink, ok := c.objects[KindSink][info.SinkIndex]; ok {
			o.MonitorIndex = sink.MonitorIndex
		}
		c.attach(o, o.MonitorIndex, o.Index)
	}
	c.mu.Unlock()

	c.notifier.notify()
}

// UpsertSourceOutput creates or updates a source output.
// Streams of known mixers and this session's own metering streams are skipped.
func (c *Cache) UpsertSourceOutput(info *proto.GetSourceOutputInfoReply) {
	id := info.Properties.Get(proto.PropApplicationID)

	c.mu.Lock()
	if c.ignore[id] || c.meters.own[info.SourceOutputIndex] {
		c.mu.Unlock()
		c.log.Debug("ignoring source output",
			"index", info.SourceOutputIndex,
			"app_id", id)
		return
	}

	o, created := c.lookupOrCreate(KindSourceOutput, info.SourceOutputIndex)
	if o.Stream == nil {
		o.Stream = &StreamInfo{}
	}
	moved := o.Stream.Device != info.SourceIndex

	o.Channels = len(info.ChannelMap)
	o.Volume = info.ChannelVolumes.Avg()
	o.Mute = info.Muted
	o.Name = truncateName(info.MediaName)
	o.Stream.Device = info.SourceIndex
	o.Stream.AppName = info.Properties.Get(proto.PropApplicationName)
	o.Stream.AppID = id
	o.Stream.Corked = info.Corked

	o.MonitorIndex = info.SourceIndex
	if created || moved || o.monitor == nil {
		c.attach(o, o.MonitorIndex, proto.Undefined)
	}
	c.mu.Unlock()

	c.notifier.notify()
}

// UpsertCard creates or updates a card.
// Cards have no volume; their meter is attached to the card's own index.
func (c *Cache) UpsertCard(info *proto.GetCardInfoReply) {
	profiles := make([]Profile, len(info.Profiles))
	active := Profile{Name: info.ActiveProfileName}
	for i, p := range info.Profiles {
		profiles[i] = Profile{
			Name:        p.Name,
			Description: p.Description,
			Available:   p.Available != 0,
			Priority:    p.Priority,
		}
		if p.Name == info.ActiveProfileName {
			active = profiles[i]
		}
	}

	c.mu.Lock()
	o, created := c.lookupOrCreate(KindCard, info.CardIndex)
	o.Channels = 0
	o.Volume = proto.VolumeNorm
	o.Mute = false
	o.Name = truncateName(firstNonEmpty(info.Properties.Get(proto.PropDeviceDescription), info.CardName))
	o.ServerName = info.CardName
	o.Card = &CardInfo{ActiveProfile: active, Profiles: profiles}

	o.MonitorIndex = o.Index
	if created || o.monitor == nil {
		c.attach(o, o.MonitorIndex, proto.Undefined)
	}
	c.mu.Unlock()

	c.notifier.notify()
}

func firstNonEmpty(s ...string) string {
	for _, s := range s {
		if s != "" {
			return s
		}
	}
	return ""
}
