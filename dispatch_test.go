package pamixer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfreymuth/pamixer/proto"
)

func newTestDispatcher(t *testing.T) (*dispatcher, *Cache, *fakeConn, *fakeServer, *Metrics) {
	t.Helper()
	c, conn, srv, _ := newTestCache(t)
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	c.metrics = m
	d := &dispatcher{
		cache:   c,
		conn:    conn,
		post:    func(fn func()) bool { fn(); return true },
		log:     discardLogger(),
		metrics: m,
	}
	return d, c, conn, srv, m
}

func event(facility, typ proto.SubscriptionEventType, index uint32) *proto.SubscribeEvent {
	return &proto.SubscribeEvent{Event: facility | typ, Index: index}
}

func TestDispatchEnumerate(t *testing.T) {
	d, c, conn, srv, _ := newTestDispatcher(t)
	srv.cards[0] = cardInfo(0)
	srv.sinks[3] = sinkInfo(3, 3)
	srv.sources[5] = sourceInfo(5)
	srv.inputs[42] = inputInfo(42, 3)
	srv.outputs[9] = outputInfo(9, 5, "org.example.recorder")
	srv.outputs[10] = outputInfo(10, 5, "org.PulseAudio.pavucontrol")

	d.enumerate()
	conn.flush()

	for _, k := range Kinds {
		assert.Equal(t, 1, c.Len(k), k.String())
	}
	m, ok := meterOf(c, KindInput, 42)
	require.True(t, ok)
	assert.Equal(t, uint32(3), m.device)
	assert.Equal(t, uint32(42), m.tag)
}

func TestDispatchNewAndChange(t *testing.T) {
	d, c, conn, srv, m := newTestDispatcher(t)
	srv.sinks[3] = sinkInfo(3, 3)

	d.message(event(proto.EventSink, proto.EventNew, 3))
	conn.flush()
	o, err := c.Get(KindSink, 3)
	require.NoError(t, err)
	assert.Equal(t, "Test Output", o.Name)

	srv.sinks[3].Device = "Headphones"
	d.message(event(proto.EventSink, proto.EventChange, 3))
	conn.flush()
	o, err = c.Get(KindSink, 3)
	require.NoError(t, err)
	assert.Equal(t, "Headphones", o.Name)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.events.WithLabelValues("sink", "new")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.events.WithLabelValues("sink", "change")))
}

func TestDispatchRemove(t *testing.T) {
	d, c, conn, srv, _ := newTestDispatcher(t)
	c.UpsertSource(sourceInfo(5))
	conn.flush()
	before := srv.count(proto.OpGetSourceInfo)

	d.message(event(proto.EventSource, proto.EventRemove, 5))
	conn.flush()
	assert.Zero(t, c.Len(KindSource))
	assert.Equal(t, before, srv.count(proto.OpGetSourceInfo), "removals need no fetch")
}

func TestDispatchFetchErrorIsDropped(t *testing.T) {
	d, c, conn, _, m := newTestDispatcher(t)

	d.message(event(proto.EventSinkInput, proto.EventNew, 42))
	conn.flush()
	assert.Zero(t, c.Len(KindInput))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fetchErrors.WithLabelValues("sink-input")))
}

func TestDispatchIgnoresOtherFacilities(t *testing.T) {
	d, _, conn, srv, _ := newTestDispatcher(t)

	d.message(event(proto.EventClient, proto.EventNew, 1))
	d.message(event(proto.EventModule, proto.EventChange, 1))
	conn.flush()
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Empty(t, srv.requests)
}

func TestDispatchStreamMessages(t *testing.T) {
	d, c, conn, _, _ := newTestDispatcher(t)
	c.UpsertSource(sourceInfo(5))
	conn.flush()
	m, _ := meterOf(c, KindSource, 5)

	d.message(&proto.DataPacket{StreamIndex: m.stream, Data: samples(0.8)})
	o, _ := c.Get(KindSource, 5)
	assert.Equal(t, float32(0.8), o.Peak)

	d.message(&proto.RecordStreamSuspended{StreamIndex: m.stream, Suspended: true})
	d.message(&proto.RecordStreamMoved{StreamIndex: m.stream, DestIndex: 6})
	_, ok := meterOf(c, KindSource, 5)
	assert.True(t, ok)

	d.message(&proto.RecordStreamKilled{StreamIndex: m.stream})
	_, ok = meterOf(c, KindSource, 5)
	assert.False(t, ok)
}
