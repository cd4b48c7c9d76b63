package pamixer

import (
	"github.com/jfreymuth/pamixer/proto"
)

// DefaultPeakRate is the sample rate of metering streams, in samples per second.
const DefaultPeakRate = 25

type monitorState int

const (
	monitorPending monitorState = iota
	monitorReady
	monitorDead
)

// A MonitorStream is a metering record stream on one source.
// It belongs to exactly one object and is never shared.
type MonitorStream struct {
	device uint32
	// tag is the sink input the stream is bound to, or proto.Undefined.
	tag   uint32
	owner *Object

	state        monitorState
	released     bool
	stream       uint32
	sourceOutput uint32

	queue []fragment
}

type fragment struct {
	data []byte
	hole int
}

// Peek implements fragmentReader.
func (m *MonitorStream) Peek() ([]byte, int) {
	if len(m.queue) == 0 {
		return nil, 0
	}
	f := m.queue[0]
	if f.data == nil {
		return nil, f.hole
	}
	return f.data, len(f.data)
}

// Drop implements fragmentReader.
func (m *MonitorStream) Drop() {
	if len(m.queue) == 0 {
		return
	}
	m.queue[0] = fragment{}
	m.queue = m.queue[1:]
}

func (m *MonitorStream) push(p *proto.DataPacket) {
	if p.Offset > 0 {
		m.queue = append(m.queue, fragment{hole: int(p.Offset)})
	}
	if len(p.Data) > 0 {
		m.queue = append(m.queue, fragment{data: p.Data})
	}
}

// meters is the metering state of a Cache. It is guarded by the cache lock.
type meters struct {
	enabled bool
	rate    uint32
	conn    requester
	post    func(func()) bool

	streams map[uint32]*MonitorStream // by record channel
	own     map[uint32]bool           // source outputs of our own streams
}

func (mt *meters) request(device, tag uint32) *proto.CreateRecordStream {
	return &proto.CreateRecordStream{
		SampleSpec:         proto.SampleSpec{Format: meterFormat, Channels: 1, Rate: mt.rate},
		ChannelMap:         proto.ChannelMap{proto.ChannelMono},
		SourceIndex:        device,
		BufferMaxLength:    proto.Undefined,
		BufferFragSize:     meterSampleSize,
		NoMove:             true,
		PeakDetect:         true,
		AdjustLatency:      true,
		Properties:         proto.PropList{proto.PropMediaName: proto.PropListString("Peak detect")},
		DirectOnInputIndex: tag,
		ChannelVolumes:     proto.ChannelVolumes{uint32(proto.VolumeNorm)},
	}
}

// attach replaces the metering stream of o with a new one on device.
// The cache lock must be held.
func (c *Cache) attach(o *Object, device, tag uint32) {
	c.release(o)
	if !c.meters.enabled || c.meters.conn == nil || device == proto.Undefined {
		return
	}

	m := &MonitorStream{
		device:       device,
		tag:          tag,
		owner:        o,
		stream:       proto.Undefined,
		sourceOutput: proto.Undefined,
	}
	o.monitor = m
	c.metrics.meterCreated()

	reply := &proto.CreateRecordStreamReply{}
	post := c.meters.post
	c.meters.conn.RequestAsync(c.meters.request(device, tag), reply, func(err error) {
		post(func() { c.meterCreated(m, reply, err) })
	})
}

// release detaches and deletes the metering stream of o, if any.
// A stream that is still being created is deleted once the server has created it.
// The cache lock must be held.
func (c *Cache) release(o *Object) {
	m := o.monitor
	if m == nil {
		return
	}
	o.monitor = nil
	m.owner = nil
	if m.released || m.state == monitorDead {
		return
	}
	m.released = true
	m.queue = nil
	c.metrics.meterReleased()
	if m.state == monitorReady {
		m.state = monitorDead
		delete(c.meters.streams, m.stream)
		c.meters.conn.RequestAsync(&proto.DeleteRecordStream{StreamIndex: m.stream}, nil, nil)
	}
}

func (c *Cache) meterCreated(m *MonitorStream, reply *proto.CreateRecordStreamReply, err error) {
	c.mu.Lock()
	changed := false
	switch {
	case err != nil:
		m.state = monitorDead
		if !m.released {
			c.metrics.meterFailed()
			c.log.Debug("metering stream failed",
				"device", m.device,
				"tag", m.tag,
				"error", err)
			if m.owner != nil && m.owner.monitor == m {
				m.owner.monitor = nil
				changed = true
			}
		}
	case m.released:
		m.state = monitorDead
		c.meters.own[reply.SourceOutputIndex] = true
		c.meters.conn.RequestAsync(&proto.DeleteRecordStream{StreamIndex: reply.StreamIndex}, nil, nil)
	default:
		m.state = monitorReady
		m.stream = reply.StreamIndex
		m.sourceOutput = reply.SourceOutputIndex
		c.meters.streams[m.stream] = m
		c.meters.own[m.sourceOutput] = true
		// The source output may have been cached before we knew it was ours.
		if o, ok := c.objects[KindSourceOutput][m.sourceOutput]; ok {
			c.release(o)
			delete(c.objects[KindSourceOutput], m.sourceOutput)
			c.metrics.setObjects(KindSourceOutput, len(c.objects[KindSourceOutput]))
			changed = true
		}
	}
	c.mu.Unlock()

	if changed {
		c.notifier.notify()
	}
}

// meterKilled handles a server-side end of a metering stream.
// The owner keeps no handle; the next relevant upsert creates a new one.
func (c *Cache) meterKilled(stream uint32) {
	c.mu.Lock()
	m, ok := c.meters.streams[stream]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.meters.streams, stream)
	m.state = monitorDead
	m.queue = nil
	c.metrics.meterFailed()
	if m.owner != nil && m.owner.monitor == m {
		m.owner.monitor = nil
	}
	m.owner = nil
	c.mu.Unlock()

	c.log.Debug("metering stream killed", "stream", stream, "device", m.device)
	c.notifier.notify()
}

// meterData buffers an audio packet and applies every complete fragment as a peak.
func (c *Cache) meterData(p *proto.DataPacket) {
	c.mu.Lock()
	m, ok := c.meters.streams[p.StreamIndex]
	if !ok {
		c.mu.Unlock()
		c.metrics.fragmentDropped("unknown_stream")
		return
	}
	m.push(p)

	updated := false
drain:
	for {
		v, res := readPeak(m)
		switch res {
		case peekEmpty:
			break drain
		case peekSample:
			c.applyPeak(m, v)
			c.metrics.peakSample()
			updated = true
		default:
			c.metrics.fragmentDropped(res.String())
		}
	}
	c.mu.Unlock()

	if updated {
		c.notifier.notify()
	}
}

// applyPeak writes a level to the objects fed by m.
// Tagged streams feed their sink input, others every device-capable object on the same source.
func (c *Cache) applyPeak(m *MonitorStream, v float32) {
	if m.tag != proto.Undefined {
		if o, ok := c.objects[KindInput][m.tag]; ok {
			o.Peak = v
		}
		return
	}
	for _, k := range [...]Kind{KindSink, KindSource, KindSourceOutput} {
		for _, o := range c.objects[k] {
			if o.MonitorIndex == m.device {
				o.Peak = v
			}
		}
	}
}
