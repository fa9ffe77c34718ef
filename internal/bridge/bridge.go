package bridge

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mindloom/nudged/internal/engine"
)

// EnvelopeType tags relayed notification clicks on the wire.
const EnvelopeType = "notification-action"

// Envelope is the wire format for relayed notification clicks, one JSON
// object per line. Exported so the in-process notifier relay and external
// helpers share one definition.
type Envelope struct {
	Type    string               `json:"type"`
	Payload engine.ActionMessage `json:"payload"`
}

// Bridge is the one-directional inbound channel carrying notification action
// clicks into the controller. The producer may be another process entirely:
// a click made while no session was running is relayed the next time one is.
type Bridge struct {
	mu      sync.Mutex
	out     chan engine.ActionMessage
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64

	socketPath string
	listener   net.Listener
	logger     *zap.Logger
}

func New(socketPath string, bufferSize int, logger *zap.Logger) *Bridge {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		out:        make(chan engine.ActionMessage, bufferSize),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		socketPath: socketPath,
		logger:     logger,
	}
}

func (b *Bridge) C() <-chan engine.ActionMessage {
	return b.out
}

// Submit feeds an action in-process. It never blocks; when the consumer lags
// the message is dropped and counted, since a lost nudge response is cheaper
// than a stalled session.
func (b *Bridge) Submit(msg engine.ActionMessage) {
	select {
	case b.out <- msg:
	default:
		atomic.AddUint64(&b.dropped, 1)
	}
}

func (b *Bridge) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// Start listens on the unix socket and relays incoming envelopes. A missing
// socket path means no external relay; Submit still works.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	b.started = true
	if b.socketPath == "" {
		close(b.doneCh)
		return nil
	}

	// A previous session may have left its socket behind.
	if err := os.Remove(b.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.logger.Warn("stale bridge socket not removable", zap.Error(err))
	}
	ln, err := net.Listen("unix", b.socketPath)
	if err != nil {
		close(b.doneCh)
		return err
	}
	b.listener = ln
	go b.acceptLoop(ln)
	return nil
}

func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started || b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopCh)
	ln := b.listener
	b.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
		<-b.doneCh
	}
}

func (b *Bridge) acceptLoop(ln net.Listener) {
	defer close(b.doneCh)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-b.stopCh:
			default:
				b.logger.Warn("bridge accept failed", zap.Error(err))
			}
			return
		}
		go b.readConn(conn)
	}
}

func (b *Bridge) readConn(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	for {
		var env Envelope
		if err := dec.Decode(&env); err != nil {
			return
		}
		if env.Type != EnvelopeType {
			b.logger.Debug("ignoring unknown bridge envelope", zap.String("type", env.Type))
			continue
		}
		b.Submit(env.Payload)
	}
}
