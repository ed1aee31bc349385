package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/subscription"
)

const (
	writeTimeout  = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsHandler struct {
	hub *subscription.Hub
	log zerolog.Logger
}

// Client control frames.
type wsRequest struct {
	Action         string `json:"action"` // subscribe | unsubscribe
	Stream         string `json:"stream"` // conversations | messages | typing
	SubscriptionID string `json:"subscriptionId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// Server frames.
type wsFrame struct {
	Type           string      `json:"type"` // subscribed | unsubscribed | snapshot | error
	Stream         string      `json:"stream,omitempty"`
	SubscriptionID string      `json:"subscriptionId,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// wsClient multiplexes any number of hub subscriptions over one connection.
// Snapshots flow through the send queue; a client that cannot keep up is
// disconnected rather than fed a partial stream.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	mu   sync.Mutex
	subs map[string]subscription.Unsubscribe

	closeOnce sync.Once
	closed    chan struct{}
}

func (h *wsHandler) serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		log:    h.log,
		subs:   make(map[string]subscription.Unsubscribe),
		closed: make(chan struct{}),
	}

	go client.writeLoop()
	client.readLoop(h.hub)
}

func (cl *wsClient) readLoop(hub *subscription.Hub) {
	defer cl.close()

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			cl.push(wsFrame{Type: "error", Error: "invalid frame"})
			continue
		}

		switch req.Action {
		case "subscribe":
			cl.subscribe(hub, req)
		case "unsubscribe":
			cl.unsubscribe(req.SubscriptionID)
		default:
			cl.push(wsFrame{Type: "error", Error: "unknown action"})
		}
	}
}

func (cl *wsClient) subscribe(hub *subscription.Hub, req wsRequest) {
	if req.SubscriptionID == "" {
		cl.push(wsFrame{Type: "error", Error: "subscriptionId is required"})
		return
	}

	ctx := context.Background()
	var unsub subscription.Unsubscribe

	switch req.Stream {
	case "conversations":
		if req.UserID == "" {
			cl.push(wsFrame{Type: "error", SubscriptionID: req.SubscriptionID, Error: "userId is required"})
			return
		}
		unsub = hub.SubscribeToConversations(ctx, req.UserID, func(conversations []*domain.Conversation) {
			cl.push(wsFrame{Type: "snapshot", Stream: "conversations", SubscriptionID: req.SubscriptionID, Data: toConversationViews(conversations)})
		})
	case "messages":
		if req.ConversationID == "" {
			cl.push(wsFrame{Type: "error", SubscriptionID: req.SubscriptionID, Error: "conversationId is required"})
			return
		}
		unsub = hub.SubscribeToMessages(ctx, req.ConversationID, func(messages []*domain.Message) {
			cl.push(wsFrame{Type: "snapshot", Stream: "messages", SubscriptionID: req.SubscriptionID, Data: toMessageViews(messages)})
		})
	case "typing":
		if req.ConversationID == "" || req.UserID == "" {
			cl.push(wsFrame{Type: "error", SubscriptionID: req.SubscriptionID, Error: "conversationId and userId are required"})
			return
		}
		unsub = hub.SubscribeToTyping(ctx, req.ConversationID, req.UserID, func(indicators []*domain.TypingIndicator) {
			cl.push(wsFrame{Type: "snapshot", Stream: "typing", SubscriptionID: req.SubscriptionID, Data: toTypingViews(indicators)})
		})
	default:
		cl.push(wsFrame{Type: "error", SubscriptionID: req.SubscriptionID, Error: "unknown stream"})
		return
	}

	cl.mu.Lock()
	if old, ok := cl.subs[req.SubscriptionID]; ok {
		old()
	}
	cl.subs[req.SubscriptionID] = unsub
	cl.mu.Unlock()

	cl.push(wsFrame{Type: "subscribed", Stream: req.Stream, SubscriptionID: req.SubscriptionID})
}

func (cl *wsClient) unsubscribe(id string) {
	cl.mu.Lock()
	unsub, ok := cl.subs[id]
	delete(cl.subs, id)
	cl.mu.Unlock()

	if ok {
		unsub()
		cl.push(wsFrame{Type: "unsubscribed", SubscriptionID: id})
	}
}

func (cl *wsClient) push(frame wsFrame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		cl.log.Error().Err(err).Msg("failed to marshal frame")
		return
	}

	select {
	case cl.send <- raw:
	case <-cl.closed:
	default:
		// Queue full: the client is too slow to receive complete snapshots,
		// so drop the connection instead of dropping updates.
		cl.log.Warn().Msg("send queue full, closing connection")
		cl.close()
	}
}

func (cl *wsClient) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-cl.send:
			if !ok {
				return
			}
			cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				cl.close()
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.close()
				return
			}
		case <-cl.closed:
			return
		}
	}
}

func (cl *wsClient) close() {
	cl.closeOnce.Do(func() {
		close(cl.closed)

		cl.mu.Lock()
		for _, unsub := range cl.subs {
			unsub()
		}
		cl.subs = nil
		cl.mu.Unlock()

		cl.conn.Close()
	})
}
