// Package hub relays live room updates to connected dashboards over WebSocket.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"home-sensor-backend/internal/metrics"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
)

// envelope is the wire format of every pushed message.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages. Delivery is
// at-most-once: clients that cannot keep up are disconnected and nothing is replayed.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}
	upgrader   websocket.Upgrader
}

// New creates a hub. An empty allowedOrigins list accepts any origin.
func New(allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Run owns the client set until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			metrics.SetLiveSubscribers(len(h.clients))
			slog.Info("websocket client registered", "remote", client.remote, "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				slog.Info("websocket client unregistered", "remote", client.remote, "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slog.Warn("websocket client too slow, removing", "remote", client.remote)
					h.drop(client)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.SetLiveSubscribers(len(h.clients))
}

// Publish encodes {event, data} and queues it for every connected client. It never
// blocks the caller; when the broadcast queue is full the message is discarded.
func (h *Hub) Publish(event string, data any) {
	message, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		slog.Error("failed to encode live update", "event", event, "err", err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		slog.Warn("live update queue full, dropping", "event", event)
	}
}

// Clients returns the number of connected clients, or zero once Run has returned.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
		remote: conn.RemoteAddr().String(),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
