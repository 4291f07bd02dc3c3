package internal

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"github.com/quartzmc/quartz/protocol"
	"github.com/quartzmc/quartz/protocol/frame"
)

type outKind uint8

const (
	outPacket outKind = iota
	outRaw
	outDisconnect
	outEnableCompression
	outEnableEncryption
)

type outMessage struct {
	kind      outKind
	pkt       protocol.Packet
	raw       []byte
	threshold int32
	secret    []byte
}

// WriteHandle is the queue-backed sending side of a connection. Any
// goroutine may enqueue; a single dedicated writer goroutine owns the frame
// encoder and the socket's send direction, so per-connection outbound order
// is exact FIFO. The pipeline's one-shot upgrades travel through the same
// queue, which pins them between the packets around them.
type WriteHandle struct {
	connID uint64
	conn   net.Conn
	enc    *frame.Encoder

	ch     chan outMessage
	kill   chan struct{}
	closed atomic.Bool
	once   atomic.Bool
	done   chan struct{}
}

// NewWriteHandle wraps the send direction of a connection and spawns its
// writer goroutine. From here on the handle owns the socket's close; the
// writer exits through Disconnect, a write error or a queue overflow.
func NewWriteHandle(connID uint64, conn net.Conn, queueSize int) *WriteHandle {
	h := &WriteHandle{
		connID: connID,
		conn:   conn,
		enc:    frame.NewEncoder(conn),
		ch:     make(chan outMessage, queueSize),
		kill:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	xsync.Go(fmt.Sprintf("quartz.writer-%d", connID), h.loop)

	return h
}

func (h *WriteHandle) ConnID() uint64 {
	return h.connID
}

// SendPacket enqueues one packet. Enqueuing to a connection that is already
// gone is a logged warning, never an error for the caller.
func (h *WriteHandle) SendPacket(p protocol.Packet) {
	h.enqueue(outMessage{kind: outPacket, pkt: p})
}

// SendRaw enqueues bytes written to the socket verbatim, with no framing,
// compression or encryption. The legacy status response uses this path.
func (h *WriteHandle) SendRaw(b []byte) {
	h.enqueue(outMessage{kind: outRaw, raw: b})
}

// EnableCompression enqueues the encoder-side compression upgrade.
func (h *WriteHandle) EnableCompression(threshold int32) {
	h.enqueue(outMessage{kind: outEnableCompression, threshold: threshold})
}

// EnableEncryption enqueues the encoder-side cipher upgrade.
func (h *WriteHandle) EnableEncryption(secret []byte) {
	h.enqueue(outMessage{kind: outEnableEncryption, secret: secret})
}

// Disconnect enqueues an orderly shutdown: queued messages ahead of it are
// flushed, then the socket is torn down in both directions and the writer
// goroutine exits. This is the only send-side close path.
func (h *WriteHandle) Disconnect() {
	if h.closed.Swap(true) {
		return
	}

	select {
	case h.ch <- outMessage{kind: outDisconnect}:
	default:
		// Queue full; the pending backlog is undeliverable anyway.
		h.forceClose()
	}
}

// Done is closed when the writer goroutine has exited.
func (h *WriteHandle) Done() <-chan struct{} {
	return h.done
}

func (h *WriteHandle) enqueue(m outMessage) {
	if h.closed.Load() {
		log.Warnf("[WriteHandle] send to closed connection dropped. wid=%d", h.connID)
		return
	}

	select {
	case h.ch <- m:
	default:
		log.Warnf("[WriteHandle] send queue overflow, closing. wid=%d", h.connID)
		h.closed.Store(true)
		h.forceClose()
	}
}

func (h *WriteHandle) forceClose() {
	if h.once.Swap(true) {
		return
	}

	close(h.kill)
}

func (h *WriteHandle) loop() (err error) {
	defer func() {
		h.closed.Store(true)

		if closeErr := h.conn.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}

		close(h.done)
	}()

	for {
		select {
		case <-h.kill:
			return nil
		case m := <-h.ch:
			stop, err := h.consume(m)
			if err != nil {
				log.Warnf("[WriteHandle] write failed. wid=%d %+v", h.connID, err)
				return err
			}

			if stop {
				return nil
			}
		}
	}
}

func (h *WriteHandle) consume(m outMessage) (stop bool, err error) {
	switch m.kind {
	case outPacket:
		payload, err := protocol.Marshal(m.pkt)
		if err != nil {
			return false, err
		}

		if err := h.enc.Encode(payload); err != nil {
			return false, err
		}

		packetsOut.Inc()
		bytesOut.Add(float64(len(payload)))

	case outRaw:
		if _, err := h.conn.Write(m.raw); err != nil {
			return false, errors.Wrap(err, "write raw buffer failed")
		}

		bytesOut.Add(float64(len(m.raw)))

	case outEnableCompression:
		h.enc.EnableCompression(m.threshold)

	case outEnableEncryption:
		if err := h.enc.EnableEncryption(m.secret); err != nil {
			return false, err
		}

	case outDisconnect:
		return true, nil
	}

	return false, nil
}
