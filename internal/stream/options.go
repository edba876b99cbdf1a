package stream

import (
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/dossier/internal/event"
	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/wire"
)

const (
	// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds the start message and the close frame.
	DefaultWriteTimeout = 5 * time.Second
)

// Option configures a Manager.
type Option func(*config)

type config struct {
	dialer           Dialer
	decoder          *wire.Decoder
	bus              *event.Bus
	logger           *logging.Logger
	recorder         Recorder
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	closeOnTerminal  bool
	now              func() time.Time
	newRunID         func() string
}

func defaultConfig() *config {
	return &config{
		logger:           logging.NopLogger(),
		handshakeTimeout: DefaultHandshakeTimeout,
		writeTimeout:     DefaultWriteTimeout,
		closeOnTerminal:  true,
		now:              time.Now,
		newRunID:         uuid.NewString,
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *config) {
		c.dialer = d
	}
}

// WithDecoder sets the frame decoder.
func WithDecoder(d *wire.Decoder) Option {
	return func(c *config) {
		c.decoder = d
	}
}

// WithBus sets the bus that receives state, decode and lifecycle events.
func WithBus(bus *event.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithLogger sets the logger for the manager.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithRecorder records every inbound frame before it is decoded.
func WithRecorder(r Recorder) Option {
	return func(c *config) {
		c.recorder = r
	}
}

// WithHandshakeTimeout bounds the opening handshake.
// A zero or negative value is replaced with the default.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *config) {
		c.handshakeTimeout = d
	}
}

// WithWriteTimeout bounds outbound writes.
// A zero or negative value is replaced with the default.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) {
		c.writeTimeout = d
	}
}

// WithCloseOnTerminal controls whether the client closes the connection
// itself after a result or error event. Defaults to true.
func WithCloseOnTerminal(v bool) Option {
	return func(c *config) {
		c.closeOnTerminal = v
	}
}

// WithClock sets the clock used for synthetic events and receive times.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithRunIDGenerator replaces the uuid run id generator.
func WithRunIDGenerator(gen func() string) Option {
	return func(c *config) {
		c.newRunID = gen
	}
}
