// Package transport owns per-peer TCP sockets and dispatches parsed
// frames to the election logic. It is a pure transport: it holds no
// election state of its own.
package transport

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rafaelcarvalho/fireelect/pkg/election/definition"
	"github.com/rafaelcarvalho/fireelect/pkg/election/metrics"
	"github.com/rafaelcarvalho/fireelect/pkg/election/types"
	"github.com/rafaelcarvalho/fireelect/pkg/election/wire"
)

const acceptPollInterval = time.Second

// Handler is the narrow capability the manager needs from the election
// state machine: a single entry point for every inbound message. Keeping
// this interface narrow instead of depending on the state machine
// concretely avoids a cyclic import between the two packages.
type Handler interface {
	HandleMessage(peerID int, kind types.Kind, payload int)
}

type connRecord struct {
	peerID  int
	conn    net.Conn
	writeMu sync.Mutex
}

// Manager is the connection manager: it owns the inbound and outbound
// socket maps, runs one acceptor goroutine and one reader goroutine per
// connected socket, and exposes Send/Shutdown to the rest of the engine.
type Manager struct {
	selfID  int
	invoker Invoker
	log     types.Logger
	metrics *metrics.Collectors

	mu       sync.Mutex
	inbound  map[int]*connRecord
	outbound map[int]*connRecord

	listener *net.TCPListener
	handler  Handler

	shutdownOnce sync.Once
	done         chan struct{}
}

// NewManager builds a Manager for selfID. Start must be called before any
// peer traffic can flow.
func NewManager(selfID int, invoker Invoker, log types.Logger, collectors *metrics.Collectors) *Manager {
	return &Manager{
		selfID:   selfID,
		invoker:  invoker,
		log:      log,
		metrics:  collectors,
		inbound:  make(map[int]*connRecord),
		outbound: make(map[int]*connRecord),
		done:     make(chan struct{}),
	}
}

// Start binds listenAddr and spawns the acceptor goroutine, which dispatches
// every inbound message to handler.
func (m *Manager) Start(listenAddr string, handler Handler) error {
	listener, err := BindAndListen(listenAddr)
	if err != nil {
		return err
	}
	m.listener = listener
	m.handler = handler
	m.invoker.Spawn(m.acceptLoop)
	return nil
}

// DialAndRegister opens an outbound socket to peerID at addr, registers it,
// and spawns a reader goroutine for it. A dial failure is fatal and
// propagated as definition.ErrDial.
func (m *Manager) DialAndRegister(peerID int, addr types.NodeAddress) error {
	conn, err := Dial(addr.String(), 10*time.Second)
	if err != nil {
		return err
	}
	rec := &connRecord{peerID: peerID, conn: conn}
	m.mu.Lock()
	m.outbound[peerID] = rec
	m.mu.Unlock()
	m.invoker.Spawn(func() { m.readLoop(rec, wire.NewReader(conn)) })
	return nil
}

// EnsureOutbound dials peerID only if no channel (inbound or outbound)
// already reaches it. The driver calls this before sending a
// PARENT_REQUEST so it dials each candidate parent lazily, on demand,
// rather than eagerly connecting to every neighbor at startup.
func (m *Manager) EnsureOutbound(peerID int, addr types.NodeAddress) error {
	m.mu.Lock()
	_, hasOutbound := m.outbound[peerID]
	_, hasInbound := m.inbound[peerID]
	m.mu.Unlock()
	if hasOutbound || hasInbound {
		return nil
	}
	return m.DialAndRegister(peerID, addr)
}

// Send transmits kind/payload to peerID, preferring the outbound socket if
// present and falling back to the inbound one. It fails with
// definition.ErrNoChannel if neither exists.
func (m *Manager) Send(peerID int, kind types.Kind, payload int) error {
	m.mu.Lock()
	rec, ok := m.outbound[peerID]
	if !ok {
		rec, ok = m.inbound[peerID]
	}
	m.mu.Unlock()
	if !ok {
		return errors.Wrapf(definition.ErrNoChannel, "peer %d", peerID)
	}

	rec.writeMu.Lock()
	defer rec.writeMu.Unlock()
	frame := wire.Encode(kind, payload)
	if _, err := rec.conn.Write(frame); err != nil {
		return errors.Wrapf(definition.ErrIO, "send to peer %d: %v", peerID, err)
	}
	if m.metrics != nil {
		m.metrics.MessagesSent.Inc()
	}
	return nil
}

// Shutdown stops the acceptor and closes every socket. It is idempotent.
// If the Invoker supplied at construction can report drain (as the
// default production and test invokers do), Shutdown blocks until every
// goroutine it spawned has returned, so callers can safely assert on
// goroutine leaks immediately afterward.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.done)
		if m.listener != nil {
			_ = m.listener.Close()
		}
		m.mu.Lock()
		for _, rec := range m.inbound {
			_ = rec.conn.Close()
		}
		for _, rec := range m.outbound {
			_ = rec.conn.Close()
		}
		m.mu.Unlock()

		if waitable, ok := m.invoker.(interface{ Stop() }); ok {
			waitable.Stop()
		}
	})
}

func (m *Manager) acceptLoop() {
	for {
		select {
		case <-m.done:
			return
		default:
		}

		conn, err := AcceptWithTimeout(m.listener, acceptPollInterval)
		if err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			m.log.Warnf("accept failed: %v", err)
			continue
		}
		if conn == nil {
			continue // poll timeout, no pending connection
		}

		reader := wire.NewReader(conn)
		kind, payload, err := reader.ReadFrame()
		if err != nil {
			m.log.Warnf("failed reading identifying frame: %v", err)
			_ = conn.Close()
			continue
		}

		peerID := payload
		rec := &connRecord{peerID: peerID, conn: conn}
		m.mu.Lock()
		m.inbound[peerID] = rec
		m.mu.Unlock()

		m.dispatch(peerID, kind, payload)
		m.invoker.Spawn(func() { m.readLoop(rec, reader) })
	}
}

func (m *Manager) readLoop(rec *connRecord, reader *wire.Reader) {
	for {
		kind, payload, err := reader.ReadFrame()
		if err != nil {
			if errors.Is(err, wire.ErrClosed) {
				m.log.Debugf("peer %d closed connection", rec.peerID)
			} else {
				m.log.Warnf("protocol error from peer %d: %v", rec.peerID, err)
			}
			return
		}
		m.dispatch(rec.peerID, kind, payload)
	}
}

func (m *Manager) dispatch(peerID int, kind types.Kind, payload int) {
	if m.metrics != nil {
		m.metrics.MessagesReceived.Inc()
	}
	m.handler.HandleMessage(peerID, kind, payload)
}
