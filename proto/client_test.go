package proto

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

type fakeServer struct {
	conn net.Conn
	r    ProtocolReader
	w    ProtocolWriter
}

func newFakeServer(t *testing.T) (*Client, *fakeServer, chan interface{}) {
	clientConn, serverConn := net.Pipe()
	messages := make(chan interface{}, 16)
	c := &Client{Callback: func(m interface{}) { messages <- m }}
	c.Open(clientConn)
	s := &fakeServer{conn: serverConn}
	s.r.r = bufio.NewReader(serverConn)
	s.w.w = serverConn
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})
	return c, s, messages
}

func (s *fakeServer) readRequest() (op, tag uint32) {
	length := s.r.uint32()
	s.r.uint32()
	s.r.uint64()
	s.r.uint32()
	end := s.r.pos + int(length)
	s.r.byte()
	op = s.r.uint32()
	s.r.byte()
	tag = s.r.uint32()
	s.r.advance(end - s.r.pos)
	return op, tag
}

func (s *fakeServer) writeCommand(op, tag uint32, fill func(w *ProtocolWriter)) {
	var buf bytes.Buffer
	w := ProtocolWriter{w: &buf}
	w.byte('L')
	w.uint32(op)
	w.byte('L')
	w.uint32(tag)
	if fill != nil {
		fill(&w)
	}
	w.flush()
	s.writePacket(commandChannel, 0, buf.Bytes())
}

func (s *fakeServer) writePacket(index uint32, offset uint64, data []byte) {
	s.w.uint32(uint32(len(data)))
	s.w.uint32(index)
	s.w.uint64(offset)
	s.w.uint32(0)
	s.w.flush()
	s.conn.Write(data)
}

func TestClientRequest(t *testing.T) {
	c, s, _ := newFakeServer(t)

	go func() {
		op, tag := s.readRequest()
		if op != OpAuth {
			s.writeCommand(OpError, tag, func(w *ProtocolWriter) { w.byte('L'); w.uint32(uint32(ErrProtocolError)) })
			return
		}
		s.writeCommand(OpReply, tag, func(w *ProtocolWriter) { w.byte('L'); w.uint32(35) })
	}()

	var reply AuthReply
	if err := c.Request(&Auth{Version: ClientVersion, Cookie: make([]byte, 256)}, &reply); err != nil {
		t.Fatalf("expecting no error, got %v", err)
	}
	if reply.Version != 35 {
		t.Errorf("expecting version 35, got %d", reply.Version)
	}
	c.SetVersion(reply.Version)
	if c.Version() != ClientVersion {
		t.Errorf("expecting version %d, got %d", ClientVersion, c.Version())
	}
}

func TestClientErrorReply(t *testing.T) {
	c, s, _ := newFakeServer(t)

	go func() {
		_, tag := s.readRequest()
		s.writeCommand(OpError, tag, func(w *ProtocolWriter) { w.byte('L'); w.uint32(uint32(ErrNoSuchEntity)) })
	}()

	err := c.Request(&GetSinkInputInfo{SinkInputIndex: 4}, &GetSinkInputInfoReply{})
	if !errors.Is(err, ErrNoSuchEntity) {
		t.Errorf("expecting %v, got %v", ErrNoSuchEntity, err)
	}
}

func TestClientWrongReplyType(t *testing.T) {
	c, _, _ := newFakeServer(t)
	err := c.Request(&GetSinkInfoList{}, &GetSourceInfoListReply{})
	if err == nil {
		t.Errorf("expecting an error for mismatched reply")
	}
}

func TestClientListReply(t *testing.T) {
	c, s, _ := newFakeServer(t)

	go func() {
		_, tag := s.readRequest()
		s.writeCommand(OpReply, tag, func(w *ProtocolWriter) {
			for i := uint32(0); i < 2; i++ {
				w.value(&GetCardInfoReply{
					CardIndex: i,
					CardName:  "card",
					Driver:    "module-alsa-card.c",
					Profiles: []CardProfile{
						{Name: "off", Description: "Off", Available: 1},
						{Name: "output:analog-stereo", Description: "Analog Stereo Output", NumSinks: 1, Priority: 6500, Available: 1},
					},
					ActiveProfileName: "output:analog-stereo",
				}, ClientVersion)
			}
		})
	}()

	var reply GetCardInfoListReply
	if err := c.Request(&GetCardInfoList{}, &reply); err != nil {
		t.Fatalf("expecting no error, got %v", err)
	}
	if len(reply) != 2 {
		t.Fatalf("expecting 2 cards, got %d", len(reply))
	}
	if reply[1].CardIndex != 1 || len(reply[1].Profiles) != 2 || reply[1].Profiles[1].Priority != 6500 {
		t.Errorf("unexpected card %+v", reply[1])
	}
	if reply[0].ActiveProfileName != "output:analog-stereo" {
		t.Errorf("unexpected active profile %q", reply[0].ActiveProfileName)
	}
}

func TestClientServerMessages(t *testing.T) {
	_, s, messages := newFakeServer(t)

	go func() {
		s.writeCommand(OpSubscribeEvent, Undefined, func(w *ProtocolWriter) {
			w.byte('L')
			w.uint32(uint32(EventSinkInput | EventChange))
			w.byte('L')
			w.uint32(12)
		})
		s.writePacket(3, 0, []byte{1, 2, 3, 4})
	}()

	select {
	case m := <-messages:
		ev, ok := m.(*SubscribeEvent)
		if !ok {
			t.Fatalf("expecting *SubscribeEvent, got %T", m)
		}
		if ev.Event != EventSinkInput|EventChange || ev.Index != 12 {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for subscribe event")
	}

	select {
	case m := <-messages:
		p, ok := m.(*DataPacket)
		if !ok {
			t.Fatalf("expecting *DataPacket, got %T", m)
		}
		if p.StreamIndex != 3 || !bytes.Equal(p.Data, []byte{1, 2, 3, 4}) {
			t.Errorf("unexpected packet %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for data packet")
	}
}

func TestClientConnectionClosed(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	closed := make(chan error, 1)
	c := &Client{OnConnectionClosed: func(err error) { closed <- err }}
	c.Open(clientConn)
	defer clientConn.Close()

	s := &fakeServer{conn: serverConn}
	s.r.r = bufio.NewReader(serverConn)
	done := make(chan error, 1)
	c.RequestAsync(&GetSinkInfoList{}, &GetSinkInfoListReply{}, func(err error) { done <- err })
	s.readRequest()
	serverConn.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expecting %v, got %v", ErrClosed, err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending request was not failed")
	}
	select {
	case err := <-closed:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expecting %v, got %v", ErrClosed, err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnConnectionClosed was not called")
	}

	// later requests fail immediately
	err := c.Request(&GetSinkInfoList{}, &GetSinkInfoListReply{})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expecting %v, got %v", ErrClosed, err)
	}
}
