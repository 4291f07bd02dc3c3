// Package internal implements the connection engine: the per-connection
// reader and writer goroutines, the dispatch bridge to the simulation
// thread, and the TCP accept loop.
package internal

import (
	"github.com/quartzmc/quartz/auth"
	"github.com/quartzmc/quartz/protocol"
)

// EventKind tags a bridge event.
type EventKind uint8

const (
	// EventPacket carries one decoded gameplay packet from a reader goroutine.
	EventPacket EventKind = iota
	// EventConnected announces a connection that finished login.
	EventConnected
	// EventDisconnected announces a connection that is gone.
	EventDisconnected
)

// Event is one message on the dispatch bridge.
type Event struct {
	Kind   EventKind
	ConnID uint64

	// Packet is set for EventPacket.
	Packet protocol.Packet

	// Handle and Profile are set for EventConnected.
	Handle  *WriteHandle
	Profile auth.Profile
}

// Bridge is the multi-producer/single-consumer channel between the reader
// goroutines and the simulation thread. Producers may block briefly when the
// buffer is full; the consumer drains without blocking once per tick.
//
// Per-connection order is preserved because each connection has a single
// reader goroutine. Interleaving across connections is arrival order.
type Bridge struct {
	ch chan Event
}

func NewBridge(size int) *Bridge {
	return &Bridge{ch: make(chan Event, size)}
}

func (b *Bridge) Send(ev Event) {
	b.ch <- ev
}

// Drain delivers every buffered event to f and returns the count without
// ever blocking. Only the simulation thread may call it.
func (b *Bridge) Drain(f func(Event)) int {
	n := 0

	for {
		select {
		case ev := <-b.ch:
			f(ev)
			n++
		default:
			return n
		}
	}
}
