package proto

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned for requests on a client whose connection has gone away.
var ErrClosed = errors.New("pulseaudio: connection closed")

const commandChannel = 0xFFFFFFFF

// Client is a connection to a PulseAudio server.
//
// Replies to RequestAsync and all server-initiated messages are delivered from the client's
// read goroutine. Callbacks must return quickly and must not wait for replies.
type Client struct {
	r ProtocolReader
	w ProtocolWriter
	v atomic.Uint32

	replyM     sync.Mutex
	nextID     uint32
	awaitReply map[uint32]awaitReply
	err        error

	send   chan send
	closed chan struct{}

	// Callback receives server-initiated messages such as *SubscribeEvent,
	// *RecordStreamKilled and *DataPacket. It must be set before Open.
	Callback func(interface{})
	// OnConnectionClosed is called once, when reading or writing fails. It must be set before Open.
	OnConnectionClosed func(error)
}

type send struct {
	index uint32
	data  []byte
}

type awaitReply struct {
	value Reply
	done  func(error)
}

func (c *Client) Version() Version {
	return Version(c.v.Load())
}

// SetVersion lowers the protocol version to what the server supports.
func (c *Client) SetVersion(v Version) {
	c.v.Store(uint32(c.Version().Min(v)))
}

// Err returns the error that closed the connection, or nil.
func (c *Client) Err() error {
	c.replyM.Lock()
	defer c.replyM.Unlock()
	return c.err
}

// Open starts the read and write goroutines on rw.
// They exit when rw fails, usually because it was closed.
func (c *Client) Open(rw io.ReadWriter) {
	c.r.r = bufio.NewReader(rw)
	c.w.w = rw
	c.v.Store(uint32(ClientVersion))

	c.send = make(chan send, 16)
	c.closed = make(chan struct{})
	c.awaitReply = make(map[uint32]awaitReply)
	go c.readLoop()
	go c.writeLoop()
}

// RequestAsync sends a request and returns without waiting for the reply.
// done, if not nil, is called exactly once from the read goroutine, after rpl has been filled in.
func (c *Client) RequestAsync(req RequestArgs, rpl Reply, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	if rpl != nil && req.command() != rpl.IsReplyTo() {
		done(fmt.Errorf("pulseaudio: wrong reply type, got %d but expected %d", rpl.IsReplyTo(), req.command()))
		return
	}

	c.replyM.Lock()
	if c.err != nil {
		err := c.err
		c.replyM.Unlock()
		done(err)
		return
	}
	tag := c.nextID
	c.nextID++
	c.awaitReply[tag] = awaitReply{rpl, done}
	c.replyM.Unlock()

	var buf bytes.Buffer
	w := ProtocolWriter{w: &buf}
	w.byte('L')
	w.uint32(req.command())
	w.byte('L')
	w.uint32(tag)
	w.value(req, c.Version())
	w.flush()

	select {
	case c.send <- send{commandChannel, buf.Bytes()}:
	case <-c.closed:
		// error() has already failed every pending reply, including this one.
	}
}

// Request sends a request and waits for the reply.
// It must not be called from a callback.
func (c *Client) Request(req RequestArgs, rpl Reply) error {
	reply := make(chan error, 1)
	c.RequestAsync(req, rpl, func(err error) { reply <- err })
	return <-reply
}

func (c *Client) take(tag uint32) (awaitReply, bool) {
	c.replyM.Lock()
	defer c.replyM.Unlock()
	a, ok := c.awaitReply[tag]
	if ok {
		delete(c.awaitReply, tag)
	}
	return a, ok
}

func (c *Client) writeLoop() {
	for {
		select {
		case s := <-c.send:
			c.w.uint32(uint32(len(s.data)))
			c.w.uint32(s.index)
			c.w.uint64(0)
			c.w.uint32(0)
			c.w.flush()
			if c.w.err == nil {
				if _, err := c.w.w.Write(s.data); err != nil {
					c.w.setErr(err)
				}
			}
			if c.w.err != nil {
				c.error(c.w.err)
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) readLoop() {
	for {
		length := c.r.uint32()
		index := c.r.uint32()
		offset := c.r.uint64()
		flags := c.r.uint32()
		if c.r.err != nil {
			c.error(c.r.err)
			return
		}
		end := c.r.pos + int(length)

		if index != commandChannel {
			data := make([]byte, length)
			c.r.bytes(data)
			if c.r.err == nil && c.Callback != nil {
				c.Callback(&DataPacket{StreamIndex: index, Offset: int64(offset), Flags: flags, Data: data})
			}
		} else {
			c.readCommand(int(length))
		}

		if c.r.err != nil {
			c.error(c.r.err)
			return
		}
		// Skip fields that are newer than the structs describe.
		c.r.advance(end - c.r.pos)
	}
}

func (c *Client) readCommand(length int) {
	c.r.byte() // L
	op := c.r.uint32()
	c.r.byte() // L
	tag := c.r.uint32()
	if c.r.err != nil {
		return
	}

	var message interface{}
	switch op {
	case OpError:
		c.r.byte() // L
		err := Error(c.r.uint32())
		if a, ok := c.take(tag); ok {
			a.done(err)
		}
	case OpReply:
		a, ok := c.take(tag)
		if !ok {
			return
		}
		if a.value != nil {
			if reflect.TypeOf(a.value).Elem().Kind() == reflect.Slice {
				c.parseInfoList(a.value, length-10)
			} else {
				c.r.value(a.value, c.Version())
			}
		}
		if c.r.err != nil {
			a.done(fmt.Errorf("pulseaudio: reading reply: %w", c.r.err))
			return
		}
		a.done(nil)
	case OpSubscribeEvent:
		message = &SubscribeEvent{}
	case OpRecordStreamKilled:
		message = &RecordStreamKilled{}
	case OpRecordStreamSuspended:
		message = &RecordStreamSuspended{}
	case OpRecordStreamMoved:
		message = &RecordStreamMoved{}
	case OpRecordStreamEvent:
		message = &RecordStreamEvent{}
	case OpRecordBufferAttrChanged:
		message = &RecordBufferAttrChanged{}
	}
	if message != nil {
		c.r.value(message, c.Version())
		if c.r.err == nil && c.Callback != nil {
			c.Callback(message)
		}
	}
}

func (c *Client) error(err error) {
	c.replyM.Lock()
	if c.err != nil {
		c.replyM.Unlock()
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	c.err = err
	pending := c.awaitReply
	c.awaitReply = make(map[uint32]awaitReply)
	close(c.closed)
	c.replyM.Unlock()

	for _, a := range pending {
		a.done(err)
	}
	if c.OnConnectionClosed != nil {
		c.OnConnectionClosed(err)
	}
}

func (c *Client) parseInfoList(value interface{}, length int) {
	start := c.r.pos
	for c.r.err == nil && c.r.pos-start < length {
		switch value := value.(type) {
		case *GetSinkInfoListReply:
			var v GetSinkInfoReply
			c.r.value(&v, c.Version())
			*value = append(*value, &v)
		case *GetSourceInfoListReply:
			var v GetSourceInfoReply
			c.r.value(&v, c.Version())
			*value = append(*value, &v)
		case *GetCardInfoListReply:
			var v GetCardInfoReply
			c.r.value(&v, c.Version())
			*value = append(*value, &v)
		case *GetSinkInputInfoListReply:
			var v GetSinkInputInfoReply
			c.r.value(&v, c.Version())
			*value = append(*value, &v)
		case *GetSourceOutputInfoListReply:
			var v GetSourceOutputInfoReply
			c.r.value(&v, c.Version())
			*value = append(*value, &v)
		default:
			c.r.setErr(fmt.Errorf("pulseaudio: cannot parse list reply %T", value))
		}
	}
}
