package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gw "github.com/gorilla/websocket"

	"github.com/karoocart/checkout-service/internal/order"
)

type Conn = gw.Conn

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	hub    *Hub
	orders order.Repository
	logger *slog.Logger
}

func NewHandler(hub *Hub, orders order.Repository, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, orders: orders, logger: logger}
}

// ServeOrder upgrades the connection and streams status updates for
// one order, starting with its current status.
func (h *Handler) ServeOrder(w http.ResponseWriter, r *http.Request, orderNumber string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	o, err := h.orders.GetByNumber(r.Context(), orderNumber)
	if err != nil {
		if !errors.Is(err, order.ErrNotFound) {
			h.logger.Warn("ws order lookup failed", "order_number", orderNumber, "err", err)
		}
		_ = conn.Close()
		return
	}

	c := &client{
		hub:         h.hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		orderNumber: orderNumber,
	}
	select {
	case h.hub.register <- c:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()

	upd := StatusUpdate{OrderNumber: orderNumber, Status: string(o.Status)}
	if b, err := json.Marshal(upd); err == nil {
		select {
		case c.send <- b:
		case <-time.After(1 * time.Second):
		}
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
}
