package internal

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"github.com/quartzmc/quartz/auth"
	"github.com/quartzmc/quartz/conf"
)

// Server accepts client connections and hands each one to its own worker.
// One goroutine blocks on accept; every connection gets one reader and one
// writer goroutine. Shutdown is signaled through the lifecycle context and
// the stopper, never through process-global state.
type Server struct {
	xsync.Stoppable

	opts     *options
	listener *net.TCPListener
	manager  *workerManager
	widGener atomic.Uint64
}

func NewServer(cfg conf.Config, bridge *Bridge, opts ...Option) (*Server, error) {
	o := newOptions(cfg, bridge, opts...)

	if o.keyPair == nil {
		k, err := auth.NewKeyPair()
		if err != nil {
			return nil, err
		}

		o.keyPair = k
	}

	return &Server{
		Stoppable: xsync.NewStopper(cfg.Conn.StopTimeout),
		opts:      o,
		manager:   newWorkerManager(),
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	bind := s.opts.conf.Server.Bind

	addr, err := net.ResolveTCPAddr("tcp", bind)
	if err != nil {
		return errors.Wrapf(err, "resolve bind failed. bind=%s", bind)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen failed. addr=%s", addr.String())
	}

	s.listener = listener

	s.GoAndStop("quartz.Server.acceptLoop", func() error {
		return s.acceptLoop(ctx)
	}, func() error {
		return s.Stop(ctx)
	})

	log.Infof("[Server] listening on %s", addr.String())

	return nil
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		select {
		case <-s.StopTriggered():
			return xsync.ErrStopByTrigger
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.accept(ctx); err != nil {
				if s.OnStopping() {
					return nil
				}

				log.Errorf("[Server] %+v", err)
			}
		}
	}
}

func (s *Server) accept(ctx context.Context) error {
	conn, err := s.listener.AcceptTCP()
	if err != nil {
		return errors.Wrap(err, "accept failed")
	}

	if err := s.configure(conn); err != nil {
		_ = conn.Close()
		return err
	}

	wid := s.widGener.Add(1)

	xsync.Go(fmt.Sprintf("quartz.Server.serve-%d", wid), func() error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		return s.serve(ctx, conn, wid)
	})

	return nil
}

func (s *Server) configure(conn *net.TCPConn) error {
	c := s.opts.conf.Conn

	if err := conn.SetKeepAlive(s.opts.conf.Server.KeepAlive); err != nil {
		return errors.Wrapf(err, "SetKeepAlive failed v=%v", s.opts.conf.Server.KeepAlive)
	}

	if err := conn.SetReadBuffer(c.ReadBufSize); err != nil {
		return errors.Wrapf(err, "SetReadBuffer failed v=%d", c.ReadBufSize)
	}

	if err := conn.SetWriteBuffer(c.WriteBufSize); err != nil {
		return errors.Wrapf(err, "SetWriteBuffer failed v=%d", c.WriteBufSize)
	}

	return nil
}

func (s *Server) serve(ctx context.Context, conn *net.TCPConn, wid uint64) (err error) {
	w := newWorker(wid, conn, s.opts)

	s.manager.Put(w)
	defer s.manager.Del(wid)

	defer func() {
		if err != nil {
			err = errors.WithMessagef(err, "wid=%d remote=%s", wid, conn.RemoteAddr())
		}
	}()

	return w.Run(ctx)
}

// Disconnect force-closes one connection through its write handle.
func (s *Server) Disconnect(wid uint64) error {
	w := s.manager.Get(wid)
	if w == nil {
		return errors.New("worker not found")
	}

	w.Handle().Disconnect()

	return nil
}

// ConnCount returns the number of live connection actors.
func (s *Server) ConnCount() int64 {
	return s.manager.Size()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.TurnOff(func() error {
		var err error

		if s.listener != nil {
			if closeErr := s.listener.Close(); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
		}

		s.manager.Walk(func(w *Worker) bool {
			w.Handle().Disconnect()
			return true
		})

		s.manager.Walk(func(w *Worker) bool {
			select {
			case <-w.Handle().Done():
			case <-ctx.Done():
				return false
			}

			return true
		})

		log.Infof("[Server] stopped")

		return err
	})
}

// Addr returns the bound listen address, useful when binding port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}
