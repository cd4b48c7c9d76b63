package pamixer

import (
	"log/slog"
	"os"
	"path"
)

// DefaultApplicationID identifies this program's own streams to the server.
const DefaultApplicationID = "pamixer"

type options struct {
	server     string
	dial       DialFunc
	appName    string
	appID      string
	ignoreApps []string
	peaks      bool
	peakRate   uint32
	queue      int
	log        *slog.Logger
	metrics    *Metrics
	onUpdate   func()
	onState    func(State)
}

func defaultOptions() options {
	return options{
		appName:  path.Base(os.Args[0]),
		appID:    DefaultApplicationID,
		peaks:    true,
		peakRate: DefaultPeakRate,
		queue:    256,
	}
}

// An Option configures a Session.
type Option func(*options)

// WithServer sets the server string.
// see https://www.freedesktop.org/wiki/Software/PulseAudio/Documentation/User/ServerStrings/
func WithServer(s string) Option {
	return func(o *options) { o.server = s }
}

// WithDialer replaces the way the session connects to the server.
func WithDialer(dial DialFunc) Option {
	return func(o *options) { o.dial = dial }
}

// WithApplicationName sets the client name shown by other mixers.
func WithApplicationName(name string) Option {
	return func(o *options) { o.appName = name }
}

// WithApplicationID sets the application id of this client.
// Source outputs carrying it are never cached.
func WithApplicationID(id string) Option {
	return func(o *options) { o.appID = id }
}

// WithIgnoredApps adds application ids whose source outputs are never cached,
// in addition to DefaultIgnoredApps.
func WithIgnoredApps(ids ...string) Option {
	return func(o *options) { o.ignoreApps = append(o.ignoreApps, ids...) }
}

// WithPeakRate sets the sample rate of metering streams.
func WithPeakRate(rate int) Option {
	return func(o *options) {
		if rate > 0 {
			o.peakRate = uint32(rate)
		}
	}
}

// WithoutPeaks disables metering streams. Peaks stay at 0.
func WithoutPeaks() Option {
	return func(o *options) { o.peaks = false }
}

// WithLogger sets the logger. Sessions log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records session and cache activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithUpdateCallback sets the function called after every cache change.
// It runs on the session's main loop, without the cache lock held.
func WithUpdateCallback(fn func()) Option {
	return func(o *options) { o.onUpdate = fn }
}

// WithStateCallback sets the function called on every state change, from the main loop.
func WithStateCallback(fn func(State)) Option {
	return func(o *options) { o.onState = fn }
}
