package proto

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"reflect"
	"strconv"
)

// maxStringLength bounds tagged strings; longer strings are a protocol error.
const maxStringLength = 1024

// ProtocolReader decodes tagged values from a packet stream.
// Errors are sticky: after the first error all reads return zero values.
type ProtocolReader struct {
	r      *bufio.Reader
	err    error
	pos    int
	intBuf [8]byte
	buf    bytes.Buffer
}

func (p *ProtocolReader) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *ProtocolReader) advance(n int) {
	if n <= 0 {
		return
	}
	p.tmpbytes(n)
	p.pos += n
}

func (p *ProtocolReader) byte() byte {
	if p.err != nil {
		return 0
	}
	if _, err := io.ReadFull(p.r, p.intBuf[:1]); err != nil {
		p.setErr(err)
		return 0
	}
	p.pos++
	return p.intBuf[0]
}

func (p *ProtocolReader) uint32() uint32 {
	if p.err != nil {
		return 0
	}
	if _, err := io.ReadFull(p.r, p.intBuf[:4]); err != nil {
		p.setErr(err)
		return 0
	}
	p.pos += 4
	return binary.BigEndian.Uint32(p.intBuf[:4])
}

func (p *ProtocolReader) uint64() uint64 {
	if p.err != nil {
		return 0
	}
	if _, err := io.ReadFull(p.r, p.intBuf[:8]); err != nil {
		p.setErr(err)
		return 0
	}
	p.pos += 8
	return binary.BigEndian.Uint64(p.intBuf[:8])
}

func (p *ProtocolReader) string() string {
	if p.err != nil {
		return ""
	}
	p.buf.Reset()

	// ReadSlice avoids allocating for the common short string.
	for {
		frag, err := p.r.ReadSlice(0)
		if err == nil {
			p.buf.Write(frag)
			break
		}
		if err != bufio.ErrBufferFull {
			p.setErr(err)
			return ""
		}
		p.buf.Write(frag)
		if p.buf.Len() > maxStringLength {
			p.setErr(ErrProtocolError)
			return ""
		}
	}

	p.pos += p.buf.Len()
	return string(p.buf.Bytes()[:p.buf.Len()-1])
}

func (p *ProtocolReader) bytes(out []byte) {
	if p.err != nil {
		return
	}
	if _, err := io.ReadFull(p.r, out); err != nil {
		p.setErr(err)
		return
	}
	p.pos += len(out)
}

// tmpbytes reads n bytes into a scratch buffer that is only valid until the next read.
// It does not move pos.
func (p *ProtocolReader) tmpbytes(n int) []byte {
	p.buf.Reset()
	if p.err != nil {
		return nil
	}
	if _, err := io.CopyN(&p.buf, p.r, int64(n)); err != nil {
		p.setErr(err)
		return nil
	}
	return p.buf.Bytes()
}

func (p *ProtocolReader) x() []byte {
	l := p.uint32()
	if p.err != nil {
		return nil
	}
	x := make([]byte, l)
	p.bytes(x)
	if p.err != nil {
		return nil
	}
	return x
}

func (p *ProtocolReader) propList(out PropList) {
	for p.err == nil {
		keyType := p.byte()
		if keyType == 'N' {
			break
		}
		if keyType != 't' {
			p.setErr(ErrProtocolError)
			return
		}
		key := p.string()
		if p.byte() != 'L' {
			p.setErr(ErrProtocolError)
			return
		}
		l := p.uint32()
		if p.byte() != 'x' {
			p.setErr(ErrProtocolError)
			return
		}
		value := p.x()
		if len(value) != int(l) {
			p.setErr(ErrProtocolError)
			return
		}
		out[key] = PropListEntry(value)
	}
}

// skipField reports whether a field with the given version tag is absent at version v.
// A plain number means "since version n", "<n" means "before version n".
func skipField(tag string, v Version) bool {
	if tag == "" {
		return false
	}
	if ver, err := strconv.Atoi(tag); err == nil {
		return ver > v.Version()
	}
	if tag[0] == '<' {
		if ver, err := strconv.Atoi(tag[1:]); err == nil {
			return ver <= v.Version()
		}
	}
	return false
}

func (p *ProtocolReader) formatInfo() FormatInfo {
	p.byte() // B
	enc := p.byte()
	p.byte() // P
	m := make(PropList)
	p.propList(m)
	return FormatInfo{enc, m}
}

func (p *ProtocolReader) value(i interface{}, version Version) {
	v := reflect.ValueOf(i).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if p.err != nil {
			return
		}
		if skipField(string(t.Field(i).Tag), version) {
			continue
		}

		f := v.Field(i)
		if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.Struct {
			if _, ok := f.Interface().([]FormatInfo); ok {
				p.byte() // B
				fi := make([]FormatInfo, p.byte())
				for i := range fi {
					p.byte() // f
					fi[i] = p.formatInfo()
				}
				f.Set(reflect.ValueOf(fi))
			} else {
				p.byte() // L
				l := int(p.uint32())
				if p.err != nil {
					return
				}
				fv := reflect.MakeSlice(f.Type(), l, l)
				for i := 0; i < l; i++ {
					p.value(fv.Index(i).Addr().Interface(), version)
				}
				f.Set(fv)
			}
			continue
		}

		switch typ := p.byte(); typ {
		case 't':
			f.SetString(p.string())
		case 'N':
			f.SetString("")
		case 'L':
			f.SetUint(uint64(p.uint32()))
		case 'B':
			f.SetUint(uint64(p.byte()))
		case 'R':
			f.SetUint(p.uint64())
		case 'r':
			f.SetInt(int64(p.uint64()))
		case 'a':
			f.Set(reflect.ValueOf(SampleSpec{p.byte(), p.byte(), p.uint32()}))
		case 'x':
			x := p.x()
			if f.Kind() == reflect.String {
				f.SetString(string(bytes.TrimSuffix(x, []byte{0})))
			} else {
				f.SetBytes(x)
			}
		case '1':
			f.SetBool(true)
		case '0':
			f.SetBool(false)
		case 'T':
			f.Set(reflect.ValueOf(Time{p.uint32(), p.uint32()}))
		case 'U':
			f.SetUint(p.uint64())
		case 'm':
			b := make([]byte, p.byte())
			p.bytes(b)
			f.SetBytes(b)
		case 'v':
			u := make(ChannelVolumes, p.byte())
			for i := range u {
				u[i] = p.uint32()
			}
			f.Set(reflect.ValueOf(u))
		case 'P':
			m := make(PropList)
			p.propList(m)
			f.Set(reflect.ValueOf(m))
		case 'V':
			f.SetUint(uint64(p.uint32()))
		case 'f':
			f.Set(reflect.ValueOf(p.formatInfo()))
		default:
			p.setErr(ErrProtocolError)
		}
	}
}
