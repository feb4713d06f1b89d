package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/antoniostano/chia/internal/protocol"
)

// ErrClosed reports that the duplex channel is gone. It unwinds the
// active exchange; callers must not treat it as a per-turn failure.
var ErrClosed = errors.New("channel closed")

// ErrRecvTimeout reports that no inbound frame arrived within the
// configured receive window. Scripted flows treat it like a stop request.
var ErrRecvTimeout = errors.New("receive timed out")

// Adapter wraps one session's bidirectional frame stream. Sends are
// fire-and-forget with respect to the dispatch loop: a slow transport
// write never stalls an exchange, and transport failures are logged and
// swallowed rather than surfaced to mid-conversation callers.
type Adapter struct {
	inbound     <-chan string
	outbound    chan<- protocol.ChatResponse
	recvTimeout time.Duration
	log         *slog.Logger

	openOnce  sync.Once
	closeOnce sync.Once
	closed    chan struct{}
	opened    bool
	mu        sync.Mutex
	onDrop    func(reason string)
}

// New builds an adapter over the connection-owned frame channels.
// recvTimeout <= 0 disables the receive deadline.
func New(inbound <-chan string, outbound chan<- protocol.ChatResponse, recvTimeout time.Duration, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		inbound:     inbound,
		outbound:    outbound,
		recvTimeout: recvTimeout,
		log:         log,
		closed:      make(chan struct{}),
	}
}

// SetDropHook installs an observer for suppressed sends. Must be called
// before the adapter is shared across goroutines.
func (a *Adapter) SetDropHook(hook func(reason string)) {
	a.onDrop = hook
}

// Open marks the channel established. Repeated calls during teardown
// races are harmless.
func (a *Adapter) Open() {
	a.openOnce.Do(func() {
		a.mu.Lock()
		a.opened = true
		a.mu.Unlock()
	})
}

// Send queues one chat_response frame. It never fails: a closed channel
// or saturated outbound queue drops the frame with a log line, because a
// transport problem the caller cannot act on must not abort the exchange.
func (a *Adapter) Send(text string) {
	a.SendFrame(protocol.NewChatResponse("", text))
}

// SendFrame queues an explicit outbound frame, preserving its message id.
func (a *Adapter) SendFrame(frame protocol.ChatResponse) {
	select {
	case <-a.closed:
		a.drop("closed")
		return
	default:
	}

	select {
	case a.outbound <- frame:
	case <-a.closed:
		a.drop("closed")
	default:
		// Keep websocket writes single-threaded; drop if the outbound
		// queue is saturated.
		a.drop("queue_full")
	}
}

// Recv blocks until the next inbound text frame, the channel closes, or
// the receive deadline expires.
func (a *Adapter) Recv(ctx context.Context) (string, error) {
	var deadline <-chan time.Time
	if a.recvTimeout > 0 {
		timer := time.NewTimer(a.recvTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-ctx.Done():
		return "", ErrClosed
	case <-a.closed:
		return "", ErrClosed
	case msg, ok := <-a.inbound:
		if !ok {
			return "", ErrClosed
		}
		return msg, nil
	case <-deadline:
		return "", ErrRecvTimeout
	}
}

// Close tears the channel down. Idempotent.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		close(a.closed)
	})
}

// Closed reports whether Close has been called.
func (a *Adapter) Closed() bool {
	select {
	case <-a.closed:
		return true
	default:
		return false
	}
}

func (a *Adapter) drop(reason string) {
	a.log.Warn("outbound frame dropped", "reason", reason)
	if a.onDrop != nil {
		a.onDrop(reason)
	}
}
