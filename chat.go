package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Direct messaging between matched members: a websocket hub for live
// delivery plus a REST endpoint for history. Messages only flow between
// mutual matches; the store enforces that on save.

// wsEvent is a server-to-client event frame.
type wsEvent struct {
	Type string `json:"type"` // "message" | "typing" | "info" | "error"
	From int    `json:"from,omitempty"`
	Data any    `json:"data,omitempty"`
}

// wsInbound is a client-to-server frame.
type wsInbound struct {
	Type string `json:"type"`
	To   int    `json:"to,omitempty"`
	Body string `json:"body,omitempty"`
}

type wsClient struct {
	userID int
	conn   *websocket.Conn
	send   chan wsEvent
	st     Store
}

// hub tracks connected clients per user.
type hub struct {
	clientsByUser map[int]map[*wsClient]bool
	mu            sync.RWMutex
}

func newHub() *hub {
	return &hub{clientsByUser: make(map[int]map[*wsClient]bool)}
}

func (h *hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*wsClient]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

func (h *hub) sendToUser(userID int, evt wsEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clientsByUser[userID] {
		select {
		case c.send <- evt:
		default:
			// Drop the event if this client's buffer is full
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the SPA origin; CORS is handled there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var chatHub = newHub()

// GET /ws/chat?token=...
func wsChatHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authStrategy.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %d: %v", userID, err)
			return
		}

		client := &wsClient{
			userID: userID,
			conn:   conn,
			send:   make(chan wsEvent, 16),
			st:     st,
		}
		chatHub.register(client)
		client.send <- wsEvent{Type: "info", Data: "connected"}

		go clientWriter(client)
		clientReader(client)
	}
}

func clientReader(c *wsClient) {
	defer func() {
		chatHub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var in wsInbound
		if err := json.Unmarshal(payload, &in); err != nil {
			c.send <- wsEvent{Type: "error", Data: "invalid message format"}
			continue
		}

		switch in.Type {
		case "message":
			if strings.TrimSpace(in.Body) == "" {
				c.send <- wsEvent{Type: "error", Data: "empty message"}
				continue
			}
			msg, err := c.st.SaveMessage(c.userID, in.To, in.Body)
			if err != nil {
				if errors.Is(err, ErrNotMatched) {
					c.send <- wsEvent{Type: "error", Data: "you can only message your matches"}
				} else {
					log.Println("Error saving message:", err)
					c.send <- wsEvent{Type: "error", Data: "cannot send message"}
				}
				continue
			}

			out := wsEvent{Type: "message", From: c.userID, Data: msg}
			chatHub.sendToUser(in.To, out)
			// Echo so the sender UI updates instantly
			chatHub.sendToUser(c.userID, out)

		case "typing":
			chatHub.sendToUser(in.To, wsEvent{Type: "typing", From: c.userID})

		default:
			c.send <- wsEvent{Type: "error", Data: "unknown message type"}
		}
	}
}

func clientWriter(c *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GET /api/chats/{peerId}/messages?limit=50&before=2026-08-30T08:00:00Z
func chatHistoryHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// /api/chats/{peerId}/messages
		if len(parts) != 4 || parts[3] != "messages" {
			http.NotFound(w, r)
			return
		}
		peerID, err := strconv.Atoi(parts[2])
		if err != nil || peerID <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid peer id")
			return
		}

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		var beforePtr *time.Time
		if s := r.URL.Query().Get("before"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				beforePtr = &t
			}
		}

		userID := r.Context().Value(userIDKey).(int)
		msgs, err := st.MessagesWith(userID, peerID, limit, beforePtr)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not fetch messages")
			log.Println("Error fetching messages:", err)
			return
		}
		if err := st.MarkRead(userID, peerID); err != nil {
			log.Println("Error marking messages read:", err)
		}
		writeJSON(w, http.StatusOK, msgs)
	})
}
