package pamixer

import (
	"context"
	"encoding/binary"
	"maps"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jfreymuth/pamixer/proto"
)

// fakeServer answers requests from fixture data.
type fakeServer struct {
	mu       sync.Mutex
	sinks    map[uint32]*proto.GetSinkInfoReply
	sources  map[uint32]*proto.GetSourceInfoReply
	inputs   map[uint32]*proto.GetSinkInputInfoReply
	outputs  map[uint32]*proto.GetSourceOutputInfoReply
	cards    map[uint32]*proto.GetCardInfoReply
	requests []proto.RequestArgs

	authErr    error
	createErr  error
	nextStream uint32
	streams    map[uint32]*proto.CreateRecordStream
	deleted    []uint32
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		sinks:      make(map[uint32]*proto.GetSinkInfoReply),
		sources:    make(map[uint32]*proto.GetSourceInfoReply),
		inputs:     make(map[uint32]*proto.GetSinkInputInfoReply),
		outputs:    make(map[uint32]*proto.GetSourceOutputInfoReply),
		cards:      make(map[uint32]*proto.GetCardInfoReply),
		nextStream: 100,
		streams:    make(map[uint32]*proto.CreateRecordStream),
	}
}

func (s *fakeServer) record(req proto.RequestArgs) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}

// count returns how many requests with the given opcode were sent.
func (s *fakeServer) count(op uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if proto.Command(r) == op {
			n++
		}
	}
	return n
}

func (s *fakeServer) creates() []*proto.CreateRecordStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*proto.CreateRecordStream
	for _, r := range s.requests {
		if c, ok := r.(*proto.CreateRecordStream); ok {
			out = append(out, c)
		}
	}
	return out
}

func (s *fakeServer) deletedStreams() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deleted)
}

func (s *fakeServer) setSink(info *proto.GetSinkInfoReply) {
	s.mu.Lock()
	s.sinks[info.SinkIndex] = info
	s.mu.Unlock()
}

func (s *fakeServer) setInput(info *proto.GetSinkInputInfoReply) {
	s.mu.Lock()
	s.inputs[info.SinkInputIndex] = info
	s.mu.Unlock()
}

func (s *fakeServer) removeSink(index uint32) {
	s.mu.Lock()
	delete(s.sinks, index)
	s.mu.Unlock()
}

func sorted[T any](m map[uint32]*T) []*T {
	var out []*T
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := *m[k]
		out = append(out, &v)
	}
	return out
}

func (s *fakeServer) serve(req proto.RequestArgs, rpl proto.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req := req.(type) {
	case *proto.Auth:
		if s.authErr != nil {
			return s.authErr
		}
		rpl.(*proto.AuthReply).Version = 35
	case *proto.SetClientName:
		rpl.(*proto.SetClientNameReply).ClientIndex = 7
	case *proto.Subscribe:
	case *proto.GetCardInfoList:
		*rpl.(*proto.GetCardInfoListReply) = sorted(s.cards)
	case *proto.GetSourceInfoList:
		*rpl.(*proto.GetSourceInfoListReply) = sorted(s.sources)
	case *proto.GetSinkInfoList:
		*rpl.(*proto.GetSinkInfoListReply) = sorted(s.sinks)
	case *proto.GetSinkInputInfoList:
		*rpl.(*proto.GetSinkInputInfoListReply) = sorted(s.inputs)
	case *proto.GetSourceOutputInfoList:
		*rpl.(*proto.GetSourceOutputInfoListReply) = sorted(s.outputs)
	case *proto.GetSinkInfo:
		info, ok := s.sinks[req.SinkIndex]
		if !ok {
			return proto.ErrNoSuchEntity
		}
		*rpl.(*proto.GetSinkInfoReply) = *info
	case *proto.GetSourceInfo:
		info, ok := s.sources[req.SourceIndex]
		if !ok {
			return proto.ErrNoSuchEntity
		}
		*rpl.(*proto.GetSourceInfoReply) = *info
	case *proto.GetSinkInputInfo:
		info, ok := s.inputs[req.SinkInputIndex]
		if !ok {
			return proto.ErrNoSuchEntity
		}
		*rpl.(*proto.GetSinkInputInfoReply) = *info
	case *proto.GetSourceOutputInfo:
		info, ok := s.outputs[req.SourceOutputIndex]
		if !ok {
			return proto.ErrNoSuchEntity
		}
		*rpl.(*proto.GetSourceOutputInfoReply) = *info
	case *proto.GetCardInfo:
		info, ok := s.cards[req.CardIndex]
		if !ok {
			return proto.ErrNoSuchEntity
		}
		*rpl.(*proto.GetCardInfoReply) = *info
	case *proto.CreateRecordStream:
		if s.createErr != nil {
			return s.createErr
		}
		ch := s.nextStream
		s.nextStream++
		s.streams[ch] = req
		r := rpl.(*proto.CreateRecordStreamReply)
		r.StreamIndex = ch
		r.SourceOutputIndex = 1000 + ch
	case *proto.DeleteRecordStream:
		delete(s.streams, req.StreamIndex)
		s.deleted = append(s.deleted, req.StreamIndex)
	}
	return nil
}

// fakeConn queues requests and server messages. Tests either flush the queue
// by hand or run it on a goroutine that plays the connection's reader.
type fakeConn struct {
	server    *fakeServer
	queue     chan func()
	onMessage func(interface{})
	onClosed  func(error)
	version   atomic.Uint32

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn(server *fakeServer) *fakeConn {
	c := &fakeConn{
		server: server,
		queue:  make(chan func(), 1024),
		closed: make(chan struct{}),
	}
	c.version.Store(uint32(proto.ClientVersion))
	return c
}

func (c *fakeConn) RequestAsync(req proto.RequestArgs, rpl proto.Reply, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	select {
	case <-c.closed:
		done(proto.ErrClosed)
		return
	default:
	}
	c.server.record(req)
	c.queue <- func() { done(c.server.serve(req, rpl)) }
}

func (c *fakeConn) Version() proto.Version { return proto.Version(c.version.Load()) }

func (c *fakeConn) SetVersion(v proto.Version) {
	c.version.Store(uint32(c.Version().Min(v)))
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// push queues a server-initiated message behind all pending replies.
func (c *fakeConn) push(msg interface{}) {
	c.queue <- func() { c.onMessage(msg) }
}

// flush answers everything queued so far, and everything that queues in turn.
func (c *fakeConn) flush() {
	for {
		select {
		case fn := <-c.queue:
			fn()
		default:
			return
		}
	}
}

func (c *fakeConn) run() {
	for {
		select {
		case fn := <-c.queue:
			fn()
		case <-c.closed:
			if c.onClosed != nil {
				c.onClosed(proto.ErrClosed)
			}
			return
		}
	}
}

// newTestCache returns a cache whose posted work runs inline.
func newTestCache(t *testing.T) (*Cache, *fakeConn, *fakeServer, *atomic.Int32) {
	t.Helper()
	srv := newFakeServer()
	conn := newFakeConn(srv)
	updates := &atomic.Int32{}
	n := &notifier{}
	n.set(func() { updates.Add(1) })
	c := newCache(cacheConfig{
		notifier:   n,
		ignoreApps: append([]string{DefaultApplicationID}, DefaultIgnoredApps...),
		peaks:      true,
		peakRate:   DefaultPeakRate,
		post:       func(fn func()) bool { fn(); return true },
	})
	c.setConn(conn)
	return c, conn, srv, updates
}

// startSession connects a session to srv and waits until it is ready.
func startSession(t *testing.T, srv *fakeServer, opts ...Option) (*Session, *fakeConn) {
	t.Helper()
	t.Setenv("PULSE_COOKIE", t.TempDir()+"/cookie")

	conns := make(chan *fakeConn, 1)
	dial := func(ctx context.Context, onMessage func(interface{}), onClosed func(error)) (Conn, error) {
		c := newFakeConn(srv)
		c.onMessage = onMessage
		c.onClosed = onClosed
		go c.run()
		conns <- c
		return c, nil
	}
	s := NewSession(append([]Option{WithDialer(dial)}, opts...)...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)

	var conn *fakeConn
	select {
	case conn = <-conns:
	case <-time.After(time.Second):
		t.Fatal("session did not dial")
	}
	require.Eventually(t, func() bool { return s.State() == StateReady }, time.Second, time.Millisecond)
	return s, conn
}

type meterInfo struct {
	device uint32
	tag    uint32
	stream uint32
	state  monitorState
	handle *MonitorStream

	sourceOutput uint32
}

// meterOf inspects the metering stream of a cached object.
func meterOf(c *Cache, kind Kind, index uint32) (meterInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.objects[kind][index]
	if !ok || o.monitor == nil {
		return meterInfo{}, false
	}
	m := o.monitor
	return meterInfo{
		device:       m.device,
		tag:          m.tag,
		stream:       m.stream,
		state:        m.state,
		handle:       m,
		sourceOutput: m.sourceOutput,
	}, true
}

func samples(v ...float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func volumes(v ...proto.Volume) proto.ChannelVolumes {
	cv := make(proto.ChannelVolumes, len(v))
	for i := range v {
		cv[i] = uint32(v[i])
	}
	return cv
}

func sinkInfo(index, monitor uint32) *proto.GetSinkInfoReply {
	return &proto.GetSinkInfoReply{
		SinkIndex:          index,
		SinkName:           "alsa_output.test",
		Device:             "Test Output",
		ChannelMap:         proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight},
		ChannelVolumes:     volumes(proto.VolumeNorm, proto.VolumeNorm),
		MonitorSourceIndex: monitor,
	}
}

func sourceInfo(index uint32) *proto.GetSourceInfoReply {
	return &proto.GetSourceInfoReply{
		SourceIndex:        index,
		SourceName:         "alsa_input.test",
		Device:             "Test Input",
		ChannelMap:         proto.ChannelMap{proto.ChannelMono},
		ChannelVolumes:     volumes(proto.VolumeNorm / 2),
		MonitorSourceIndex: proto.Undefined,
	}
}

func inputInfo(index, sink uint32) *proto.GetSinkInputInfoReply {
	props := proto.PropList{}
	props.Set(proto.PropApplicationName, "Music Player")
	props.Set(proto.PropApplicationID, "org.example.player")
	return &proto.GetSinkInputInfoReply{
		SinkInputIndex: index,
		MediaName:      "song",
		SinkIndex:      sink,
		ChannelMap:     proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight},
		ChannelVolumes: volumes(proto.VolumeNorm, proto.VolumeNorm/2),
		Properties:     props,
	}
}

func outputInfo(index, source uint32, appID string) *proto.GetSourceOutputInfoReply {
	props := proto.PropList{}
	props.Set(proto.PropApplicationName, "Recorder")
	if appID != "" {
		props.Set(proto.PropApplicationID, appID)
	}
	return &proto.GetSourceOutputInfoReply{
		SourceOutputIndex: index,
		MediaName:         "capture",
		SourceIndex:       source,
		ChannelMap:        proto.ChannelMap{proto.ChannelMono},
		ChannelVolumes:    volumes(proto.VolumeNorm),
		Properties:        props,
	}
}

func cardInfo(index uint32) *proto.GetCardInfoReply {
	props := proto.PropList{}
	props.Set(proto.PropDeviceDescription, "Built-in Audio")
	return &proto.GetCardInfoReply{
		CardIndex: index,
		CardName:  "alsa_card.pci",
		Profiles: []proto.CardProfile{
			{Name: "off", Description: "Off", Available: 1},
			{Name: "output:analog-stereo", Description: "Analog Stereo Output", NumSinks: 1, Priority: 6500, Available: 1},
		},
		ActiveProfileName: "output:analog-stereo",
		Properties:        props,
	}
}
