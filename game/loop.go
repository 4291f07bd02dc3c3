// Package game runs the authoritative simulation loop. Every live client is
// registered here, and all gameplay packets funnel through the dispatch
// bridge into this single goroutine, so the registry needs no locking.
package game

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/quartzmc/quartz/auth"
	"github.com/quartzmc/quartz/conf"
	"github.com/quartzmc/quartz/internal"
	"github.com/quartzmc/quartz/protocol"
)

// Client is one live, authenticated connection as the simulation sees it.
type Client struct {
	ConnID  uint64
	Profile auth.Profile
	Handle  *internal.WriteHandle

	// pendingKeepAlives counts probes sent since the last echo.
	pendingKeepAlives int
}

// Handler consumes one gameplay packet for a client on the tick goroutine.
type Handler func(ctx context.Context, c *Client, pkt protocol.Packet) error

// Loop is the tick loop plus the live-client registry. The registry is
// owned exclusively by the Run goroutine; other threads reach clients only
// through their write handles.
type Loop struct {
	conf   conf.Game
	bridge *internal.Bridge

	clients  map[uint64]*Client
	handlers map[int32]Handler

	online   atomic.Int64
	commands chan string
	stopFn   func()

	ticks          uint64
	keepAliveTicks uint64
}

func NewLoop(cfg conf.Game, bridge *internal.Bridge, stopFn func()) *Loop {
	keepAliveTicks := uint64(1)
	if cfg.KeepAliveInterval > cfg.TickInterval {
		keepAliveTicks = uint64(cfg.KeepAliveInterval / cfg.TickInterval)
	}

	return &Loop{
		conf:           cfg,
		bridge:         bridge,
		clients:        make(map[uint64]*Client),
		handlers:       make(map[int32]Handler),
		commands:       make(chan string, cfg.CommandQueueSize),
		stopFn:         stopFn,
		keepAliveTicks: keepAliveTicks,
	}
}

// OnPacket registers the handler for a serverbound play packet id.
// Registration must finish before Run starts.
func (l *Loop) OnPacket(id int32, h Handler) {
	l.handlers[id] = h
}

// Online returns the live player count. Safe from any goroutine.
func (l *Loop) Online() int {
	return int(l.online.Load())
}

// Submit queues an operator console command for the next tick.
func (l *Loop) Submit(cmd string) {
	select {
	case l.commands <- cmd:
	default:
		log.Warnf("[Game] command queue full, dropped: %q", cmd)
	}
}

// Run drives ticks until the context is canceled. The loop blocks only on
// its tick timer, never on packet arrival.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.conf.TickInterval)
	defer ticker.Stop()

	log.Infof("[Game] tick loop started. interval=%s", l.conf.TickInterval)

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	l.bridge.Drain(func(ev internal.Event) {
		l.apply(ctx, ev)
	})

	l.drainCommands()

	l.ticks++
	if l.ticks%l.keepAliveTicks == 0 {
		l.sendKeepAlives()
	}
}

func (l *Loop) apply(ctx context.Context, ev internal.Event) {
	switch ev.Kind {
	case internal.EventConnected:
		l.clients[ev.ConnID] = &Client{
			ConnID:  ev.ConnID,
			Profile: ev.Profile,
			Handle:  ev.Handle,
		}
		l.online.Store(int64(len(l.clients)))

		log.Infof("[Game] %s joined. wid=%d uuid=%s online=%d",
			ev.Profile.Name, ev.ConnID, ev.Profile.ID, len(l.clients))

	case internal.EventDisconnected:
		c, ok := l.clients[ev.ConnID]
		if !ok {
			return
		}

		delete(l.clients, ev.ConnID)
		l.online.Store(int64(len(l.clients)))

		log.Infof("[Game] %s left. wid=%d online=%d", c.Profile.Name, ev.ConnID, len(l.clients))

	case internal.EventPacket:
		l.dispatch(ctx, ev)
	}
}

func (l *Loop) dispatch(ctx context.Context, ev internal.Event) {
	c, ok := l.clients[ev.ConnID]
	if !ok {
		// The connection died between forwarding and this tick.
		log.Debugf("[Game] packet for unknown client. wid=%d id=0x%02x", ev.ConnID, ev.Packet.ID())
		return
	}

	if _, ok := ev.Packet.(*protocol.KeepAliveServerbound); ok {
		c.pendingKeepAlives = 0
		return
	}

	h, ok := l.handlers[ev.Packet.ID()]
	if !ok {
		log.Debugf("[Game] unhandled packet. wid=%d id=0x%02x", ev.ConnID, ev.Packet.ID())
		return
	}

	if err := h(ctx, c, ev.Packet); err != nil {
		log.Warnf("[Game] handler failed. wid=%d id=0x%02x %+v", ev.ConnID, ev.Packet.ID(), err)
	}
}

func (l *Loop) sendKeepAlives() {
	now := time.Now().UnixMilli()

	for _, c := range l.clients {
		if c.pendingKeepAlives >= l.conf.KeepAliveMisses {
			l.kick(c, "Timed out")
			continue
		}

		c.Handle.SendPacket(&protocol.KeepAliveClientbound{Payload: now})
		c.pendingKeepAlives++
	}
}

// kick queues a reasoned disconnect; the registry entry is removed when the
// reader's lifecycle event comes back over the bridge.
func (l *Loop) kick(c *Client, reason string) {
	doc, err := json.Marshal(protocol.StatusText{Text: reason})
	if err == nil {
		c.Handle.SendPacket(&protocol.PlayDisconnect{Reason: string(doc)})
	}

	c.Handle.Disconnect()

	log.Infof("[Game] kicked %s: %s", c.Profile.Name, reason)
}

func (l *Loop) drainCommands() {
	for {
		select {
		case cmd := <-l.commands:
			l.runCommand(cmd)
		default:
			return
		}
	}
}

func (l *Loop) runCommand(cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "stop":
		log.Infof("[Game] stop requested from console")
		l.stopFn()

	case "list":
		names := make([]string, 0, len(l.clients))
		for _, c := range l.clients {
			names = append(names, c.Profile.Name)
		}

		log.Infof("[Game] %d player(s) online: %s", len(names), strings.Join(names, ", "))

	case "kick":
		if len(fields) < 2 {
			log.Warnf("[Game] usage: kick <name>")
			return
		}

		for _, c := range l.clients {
			if c.Profile.Name == fields[1] {
				l.kick(c, "Kicked by an operator")
				return
			}
		}

		log.Warnf("[Game] no such player: %s", fields[1])

	default:
		log.Warnf("[Game] unknown command: %q", fields[0])
	}
}

func (l *Loop) shutdown() {
	for _, c := range l.clients {
		l.kick(c, "Server closed")
	}

	l.clients = map[uint64]*Client{}
	l.online.Store(0)
}
