package internal

import (
	"context"
	"io"
	"net"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/quartzmc/quartz/protocol"
	"github.com/quartzmc/quartz/protocol/frame"
)

// Worker is the connection actor. It owns the socket's receive direction,
// the read buffer, the frame decoder and the connection state, and runs the
// blocking read loop on its own goroutine. Handshake, status and login
// packets are handled inline here; once the connection reaches play, every
// inbound packet is forwarded over the dispatch bridge.
type Worker struct {
	id    uint64
	conn  net.Conn
	dec   *frame.Decoder
	state protocol.State

	handle   *WriteHandle
	registry *protocol.Registry
	bridge   *Bridge
	session  *sessionHandler

	readFilter middleware.Middleware

	// announced marks that EventConnected reached the simulation thread and
	// a matching EventDisconnected is owed on teardown.
	announced bool
}

func newWorker(id uint64, conn net.Conn, opts *options) *Worker {
	w := &Worker{
		id:         id,
		conn:       conn,
		dec:        frame.NewDecoder(conn),
		state:      protocol.StateHandshake,
		handle:     NewWriteHandle(id, conn, opts.conf.Conn.SendQueueSize),
		registry:   opts.registry,
		bridge:     opts.bridge,
		readFilter: opts.readFilter,
	}

	w.session = newSessionHandler(w, opts)

	return w
}

func (w *Worker) WID() uint64 {
	return w.id
}

func (w *Worker) Handle() *WriteHandle {
	return w.handle
}

func (w *Worker) State() protocol.State {
	return w.state
}

// Run drives the read loop until the peer goes away, a protocol violation
// surfaces, or the context is canceled. It always leaves the connection in
// StateDisconnected with the writer told to stop.
func (w *Worker) Run(ctx context.Context) error {
	activeConnections.Inc()
	defer w.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if w.state == protocol.StateDisconnected {
			return nil
		}

		if err := w.read(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				log.Debugf("[Worker] peer closed. wid=%d", w.id)
				return nil
			}

			log.Warnf("[Worker] read failed. wid=%d state=%s %+v", w.id, w.state, err)

			return err
		}
	}
}

// read decodes one inbound packet and dispatches it. Any error it returns
// is fatal to the connection; a misaligned byte stream is never resynced.
func (w *Worker) read(ctx context.Context) error {
	if w.state == protocol.StateHandshake {
		// The legacy probe is a bare 0xFE with no length prefix; it must be
		// spotted before varint framing is assumed.
		first, err := w.dec.Peek()
		if err != nil {
			return err
		}

		if first == protocol.LegacyPingByte {
			return w.session.handleLegacyPing()
		}
	}

	payload, err := w.dec.ReadFrame()
	if err != nil {
		return err
	}

	packetsIn.Inc()
	bytesIn.Add(float64(len(payload)))

	pkt, err := w.registry.Decode(w.state, protocol.Wrap(payload))
	if err != nil {
		return err
	}

	next := func(ctx context.Context, req any) (any, error) {
		return nil, w.dispatch(ctx, req.(protocol.Packet))
	}

	if w.readFilter != nil {
		next = w.readFilter(next)
	}

	_, err = next(ctx, pkt)

	return err
}

func (w *Worker) dispatch(ctx context.Context, pkt protocol.Packet) error {
	switch w.state {
	case protocol.StateHandshake:
		hs, ok := pkt.(*protocol.Handshake)
		if !ok {
			return errors.Wrapf(protocol.ErrUnknownPacket, "state=%s", w.state)
		}

		return w.session.handleHandshake(hs)

	case protocol.StateStatus:
		return w.session.handleStatus(pkt)

	case protocol.StateLogin:
		return w.session.handleLogin(ctx, pkt)

	case protocol.StatePlay:
		w.bridge.Send(Event{Kind: EventPacket, ConnID: w.id, Packet: pkt})
		return nil

	default:
		return errors.Wrapf(protocol.ErrUnknownPacket, "state=%s", w.state)
	}
}

// enterPlay is called by the session handler after LoginSuccess is queued.
func (w *Worker) enterPlay(ev Event) {
	w.state = protocol.StatePlay
	w.announced = true
	w.bridge.Send(ev)
}

func (w *Worker) teardown() {
	w.state = protocol.StateDisconnected
	w.handle.Disconnect()

	if w.announced {
		w.bridge.Send(Event{Kind: EventDisconnected, ConnID: w.id})
	}

	activeConnections.Dec()
}
