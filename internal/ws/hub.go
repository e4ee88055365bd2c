// Package ws streams order status changes to success pages waiting
// out the race between the gateway return redirect and the notify
// callback.
package ws

import (
	"context"
	"encoding/json"
)

type StatusUpdate struct {
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

type client struct {
	hub         *Hub
	conn        *Conn
	send        chan []byte
	orderNumber string
}

type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan StatusUpdate
	done       chan struct{}
	clients    map[string]map[*client]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan StatusUpdate),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*client]bool),
	}
}

// Broadcast queues a status update for every client watching the
// order. Safe to call from any goroutine; once the hub has stopped
// the update is dropped instead of blocking the caller.
func (h *Hub) Broadcast(upd StatusUpdate) {
	select {
	case h.broadcast <- upd:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.orderNumber]
			if !ok {
				set = make(map[*client]bool)
				h.clients[c.orderNumber] = set
			}
			set[c] = true
		case c := <-h.unregister:
			if set, ok := h.clients[c.orderNumber]; ok {
				if _, exists := set[c]; exists {
					delete(set, c)
					close(c.send)
				}
				if len(set) == 0 {
					delete(h.clients, c.orderNumber)
				}
			}
		case upd := <-h.broadcast:
			msg, _ := json.Marshal(upd)
			if set, ok := h.clients[upd.OrderNumber]; ok {
				for c := range set {
					select {
					case c.send <- msg:
					default:
						delete(set, c)
						close(c.send)
					}
				}
			}
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			return
		}
	}
}
