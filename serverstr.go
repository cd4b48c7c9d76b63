package pamixer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfreymuth/pamixer/proto"
)

const defaultTCPPort = "4713"

// Conn is a server connection as used by a Session.
// Replies are delivered through the done callbacks of RequestAsync.
type Conn interface {
	RequestAsync(req proto.RequestArgs, rpl proto.Reply, done func(error))
	Version() proto.Version
	SetVersion(v proto.Version)
	Close() error
}

// A DialFunc connects to a server.
// Messages pushed by the server are passed to onMessage and a lost connection to onClosed.
// Both are called from the connection's reader goroutine and must not block on requests.
type DialFunc func(ctx context.Context, onMessage func(interface{}), onClosed func(error)) (Conn, error)

type clientConn struct {
	*proto.Client
	conn net.Conn
}

func (c *clientConn) Close() error { return c.conn.Close() }

// Dialer returns a DialFunc for a server string.
// An empty server string uses $PULSE_SERVER, then the per-user socket.
// see https://www.freedesktop.org/wiki/Software/PulseAudio/Documentation/User/ServerStrings/
func Dialer(server string) DialFunc {
	return func(ctx context.Context, onMessage func(interface{}), onClosed func(error)) (Conn, error) {
		servers := resolveServers(server)
		if len(servers) == 0 {
			return nil, errors.New("no valid pulse server")
		}

		localname, err := os.Hostname()
		if err != nil {
			return nil, err
		}

		var d net.Dialer
		lastErr := errors.New("no server for this host")
		for _, s := range servers {
			if s.localname != "" && localname != s.localname {
				continue
			}
			conn, err := d.DialContext(ctx, s.protocol, s.addr)
			if err != nil {
				lastErr = err
				continue
			}
			c := &clientConn{
				Client: &proto.Client{Callback: onMessage, OnConnectionClosed: onClosed},
				conn:   conn,
			}
			c.Open(conn)
			return c, nil
		}
		return nil, fmt.Errorf("connections failed: %w", lastErr)
	}
}

func resolveServers(server string) []serverString {
	if server != "" {
		return parseServerString(server)
	}
	if raw, ok := os.LookupEnv("PULSE_SERVER"); ok {
		return parseServerString(raw)
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = fmt.Sprint("/run/user/", os.Getuid())
	}
	return []serverString{{protocol: "unix", addr: filepath.Join(runtimeDir, "pulse", "native")}}
}

type serverString struct {
	localname string
	protocol  string
	addr      string
}

func parseServerString(str string) []serverString {
	s := strings.Fields(str)
	var result []serverString
	for _, s := range s {
		var server serverString
		if s[0] == '{' {
			end := strings.IndexByte(s, '}')
			if end < 0 {
				continue
			}
			server.localname = s[1:end]
			s = s[end+1:]
		}
		switch {
		case len(s) == 0:
			continue
		case s[0] == '/':
			server.protocol = "unix"
			server.addr = s
		case strings.HasPrefix(s, "unix:"):
			server.protocol = "unix"
			server.addr = s[5:]
		case strings.HasPrefix(s, "tcp6:"):
			server.protocol = "tcp6"
			server.addr = withPort(s[5:])
		case strings.HasPrefix(s, "tcp4:"):
			server.protocol = "tcp4"
			server.addr = withPort(s[5:])
		case strings.HasPrefix(s, "tcp:"):
			server.protocol = "tcp"
			server.addr = withPort(s[4:])
		default:
			continue
		}
		result = append(result, server)
	}
	return result
}

func withPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), defaultTCPPort)
}

// loadCookie reads the auth cookie from $PULSE_COOKIE or ~/.config/pulse/cookie.
// Without a cookie file it returns 256 zero bytes, which servers started with
// auth-anonymous=1 accept.
func loadCookie() ([]byte, error) {
	path := filepath.Join(os.Getenv("HOME"), ".config", "pulse", "cookie")
	if p, ok := os.LookupEnv("PULSE_COOKIE"); ok {
		path = p
	}
	cookie, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading cookie: %w", err)
		}
		cookie = make([]byte, 256)
	}
	return cookie, nil
}
