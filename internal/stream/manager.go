// Package stream owns the single live connection of a research run.
//
// The Manager sends the start message, feeds every inbound frame through
// the wire decoder into the research store in arrival order, and turns
// transport failures into synthetic error events so the run state always
// settles.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/dossier/internal/errors"
	"github.com/Iron-Ham/dossier/internal/event"
	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/wire"
)

// Recorder persists the inbound frames of a run. Begin is called once the
// start message was sent; Record and Finish are called from the reader
// goroutine.
type Recorder interface {
	Begin(runID, url string, at time.Time, params wire.StartParams) error
	Record(runID string, receivedAt time.Time, frame []byte) error
	Finish(runID string) error
}

// Reasons carried by event.RunStoppedEvent.
const (
	StopTerminal  = "terminal"
	StopRequested = "stopped"
	StopTransport = "transport"
)

// run is one connection and its reader.
type run struct {
	id     string
	conn   Conn
	logger *logging.Logger
	done   chan struct{}
	// ready is closed once StartRun published its events; halt is closed
	// by closeRun. The reader starts reading after either.
	ready chan struct{}
	halt  chan struct{}

	// stopped is set by StopRun so the reader exits without synthesizing.
	stopped atomic.Bool
	// terminal is set once a result or error event was applied.
	terminal atomic.Bool
	// err is the transport failure that ended the run. It is written
	// before done is closed.
	err error
}

// Manager holds at most one live run at a time.
//
// Bus handlers run on the goroutine that publishes. The manager never
// publishes while holding mu, and the read-only accessors take no lock, so
// handlers may call Active, RunID, Done and Err.
type Manager struct {
	url   string
	store *research.Store
	cfg   *config

	// mu serializes StartRun and StopRun.
	mu     sync.Mutex
	active atomic.Pointer[run]
}

// NewManager creates a Manager that connects to url and applies events to
// store. The store must be non-nil.
func NewManager(url string, store *research.Store, opts ...Option) *Manager {
	if store == nil {
		panic("stream: research.Store must not be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.handshakeTimeout <= 0 {
		cfg.handshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.writeTimeout <= 0 {
		cfg.writeTimeout = DefaultWriteTimeout
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.decoder == nil {
		cfg.decoder = wire.NewDecoder(wire.WithClock(cfg.now))
	}
	if cfg.dialer == nil {
		cfg.dialer = NewWebsocketDialer(cfg.handshakeTimeout)
	}
	if cfg.bus == nil {
		cfg.bus = event.NewBus(event.WithLogger(cfg.logger))
	}

	return &Manager{
		url:   url,
		store: store,
		cfg:   cfg,
	}
}

// Bus returns the bus the manager publishes to.
func (m *Manager) Bus() *event.Bus {
	return m.cfg.bus
}

// URL returns the service endpoint.
func (m *Manager) URL() string {
	return m.url
}

// StartRun closes any previous run, resets the store to a fresh state and
// opens a new connection that sends params as its first message.
//
// The run id is returned even when the connection fails; in that case the
// store already holds the synthetic error for that run.
func (m *Manager) StartRun(ctx context.Context, params wire.StartParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	runID, r, events, err := m.startRun(ctx, params)
	for _, ev := range events {
		m.cfg.bus.Publish(ev)
	}
	if r != nil {
		close(r.ready)
	}
	return runID, err
}

// startRun does the work of StartRun under m.mu and returns the events to
// publish once the lock is released. The reader of the returned run waits
// for ready, so nothing it publishes can overtake those events.
func (m *Manager) startRun(ctx context.Context, params wire.StartParams) (string, *run, []event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.active.Swap(nil); prev != nil {
		m.closeRun(prev)
	}

	runID := m.cfg.newRunID()
	logger := m.cfg.logger.WithRun(runID)

	m.store.Reset(research.NewRunState(runID, params, m.cfg.now()))
	events := []event.Event{event.NewStateChangedEvent(m.store.Snapshot())}
	apply := func(ev wire.Event) {
		if state, ok := m.store.Apply(runID, ev); ok {
			events = append(events, event.NewStateChangedEvent(state))
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.handshakeTimeout)
	defer cancel()

	conn, resp, err := m.cfg.dialer.DialContext(dialCtx, m.url, nil)
	if err != nil {
		msg := fmt.Sprintf("connection failed: %v", err)
		retryable := true
		if resp != nil {
			msg = fmt.Sprintf("connection failed: HTTP %d", resp.StatusCode)
			// The service answered; only server-side failures may clear up.
			retryable = resp.StatusCode >= http.StatusInternalServerError
		}
		tErr := errors.NewTransportError(msg, errors.ErrHandshakeFailed).
			WithRetryable(retryable).
			WithURL(m.url).
			WithRunID(runID)
		logger.ErrorAt(tErr, "dial failed", "url", m.url)
		apply(wire.NewErrorEvent(msg, m.cfg.now()))
		return runID, nil, events, tErr
	}

	apply(wire.NewConnectedEvent(m.url, m.cfg.now()))

	if err := m.sendStart(conn, params); err != nil {
		_ = conn.Close()
		msg := fmt.Sprintf("failed to send start message: %v", err)
		logger.Error("start message failed", "error", err.Error())
		apply(wire.NewErrorEvent(msg, m.cfg.now()))
		return runID, nil, events, errors.NewTransportError(msg, errors.ErrConnectionLost).WithURL(m.url).WithRunID(runID)
	}

	if m.cfg.recorder != nil {
		if err := m.cfg.recorder.Begin(runID, m.url, m.store.Snapshot().StartedAt, params); err != nil {
			logger.Warn("failed to start recording", "error", err.Error())
		}
	}

	r := &run{
		id:     runID,
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
		halt:   make(chan struct{}),
	}
	m.active.Store(r)
	go m.read(r)

	logger.Info("run started",
		"url", m.url,
		"topic", params.Topic,
		"kb_name", params.KnowledgeBase,
		"plan_mode", string(params.PlanMode))
	events = append(events, event.NewRunStartedEvent(runID, m.url, params.Topic))
	return runID, r, events, nil
}

func (m *Manager) sendStart(conn Conn, params wire.StartParams) error {
	if err := conn.SetWriteDeadline(m.cfg.now().Add(m.cfg.writeTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(params); err != nil {
		return err
	}
	return conn.SetWriteDeadline(time.Time{})
}

// StopRun closes the active connection immediately. It sends a best-effort
// close frame, does not wait for the server to acknowledge, and applies no
// further events. It returns errors.ErrNoActiveRun when nothing is live.
func (m *Manager) StopRun() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.active.Load()
	if r == nil || r.finished() {
		return errors.Wrap(errors.ErrNoActiveRun, "stop run")
	}
	m.active.Store(nil)
	m.closeRun(r)
	return nil
}

// Close stops the active run, if any.
func (m *Manager) Close() error {
	err := m.StopRun()
	if errors.Is(err, errors.ErrNoActiveRun) {
		return nil
	}
	return err
}

// closeRun marks r stopped, closes its socket and waits for its reader.
// The caller must hold m.mu; the reader never takes it.
func (m *Manager) closeRun(r *run) {
	r.stopped.Store(true)
	close(r.halt)
	deadline := m.cfg.now().Add(m.cfg.writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client stopped")
	_ = r.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = r.conn.Close()
	<-r.done
	r.logger.Info("run stopped by client")
}

// Active reports whether a run's reader is still receiving.
func (m *Manager) Active() bool {
	r := m.active.Load()
	return r != nil && !r.finished()
}

// RunID returns the id of the most recently started run that was not
// stopped, or "".
func (m *Manager) RunID() string {
	if r := m.active.Load(); r != nil {
		return r.id
	}
	return ""
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel closed when the current run's reader exits. With
// no run it returns an already closed channel.
func (m *Manager) Done() <-chan struct{} {
	if r := m.active.Load(); r != nil {
		return r.done
	}
	return closedDone
}

// Err returns the transport error that ended the current run. It is nil
// while the run is live, after a terminal event and after StopRun.
func (m *Manager) Err() error {
	r := m.active.Load()
	if r == nil || !r.finished() {
		return nil
	}
	return r.err
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// read is the single reader of r.conn. Frames are handled strictly in
// arrival order.
func (m *Manager) read(r *run) {
	reason := StopTransport
	defer func() {
		_ = r.conn.Close()
		if m.cfg.recorder != nil {
			if err := m.cfg.recorder.Finish(r.id); err != nil {
				r.logger.Warn("failed to finish recording", "error", err.Error())
			}
		}
		close(r.done)
		m.cfg.bus.Publish(event.NewRunStoppedEvent(r.id, reason))
	}()

	select {
	case <-r.ready:
	case <-r.halt:
	}

	for {
		_, frame, err := r.conn.ReadMessage()
		if err != nil {
			switch {
			case r.stopped.Load():
				reason = StopRequested
			case r.terminal.Load():
				reason = StopTerminal
			default:
				msg, cause := describeReadError(err)
				r.err = errors.NewTransportError(msg, cause).WithURL(m.url).WithRunID(r.id)
				r.logger.Warn("connection ended before a terminal event", "error", err.Error())
				m.applyTo(r.id, wire.NewErrorEvent(msg, m.cfg.now()))
			}
			return
		}

		receivedAt := m.cfg.now()
		if m.cfg.recorder != nil {
			if err := m.cfg.recorder.Record(r.id, receivedAt, frame); err != nil {
				r.logger.Warn("failed to record frame", "error", err.Error())
			}
		}

		ev, err := m.cfg.decoder.DecodeAt(frame, receivedAt)
		if err != nil {
			r.logger.ErrorAt(err, "dropping undecodable frame")
			m.cfg.bus.Publish(event.NewDecodeFailedEvent(r.id, err))
			continue
		}

		if r.stopped.Load() {
			reason = StopRequested
			return
		}
		m.applyTo(r.id, ev)

		if wire.Terminal(ev) {
			r.terminal.Store(true)
			r.logger.Info("run reached terminal event", "kind", string(ev.Kind()))
			if m.cfg.closeOnTerminal {
				reason = StopTerminal
				return
			}
		}
	}
}

func (m *Manager) applyTo(runID string, ev wire.Event) {
	state, ok := m.store.Apply(runID, ev)
	if ok {
		m.cfg.bus.Publish(event.NewStateChangedEvent(state))
	}
}

// describeReadError turns a read failure into the message of the synthetic
// error event and the sentinel it wraps. A close frame from the peer is
// ErrConnectionClosed; anything else is ErrConnectionLost.
func describeReadError(err error) (string, error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseAbnormalClosure {
			return fmt.Sprintf("connection lost: %s", closeErr.Text), errors.ErrConnectionLost
		}
		if closeErr.Text != "" {
			return fmt.Sprintf("connection closed before the run finished (code %d: %s)", closeErr.Code, closeErr.Text), errors.ErrConnectionClosed
		}
		return fmt.Sprintf("connection closed before the run finished (code %d)", closeErr.Code), errors.ErrConnectionClosed
	}
	return fmt.Sprintf("connection lost: %v", err), errors.ErrConnectionLost
}
