// Package websocket pushes chart events to connected clients. Clients
// subscribe to per-patient topics ("Patient/<id>") or to AllTopics.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AllTopics receives every event regardless of patient.
const AllTopics = "*"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Event is a chart change notification.
type Event struct {
	Type         string          `json:"type"`
	Topic        string          `json:"topic"`
	PatientID    string          `json:"patientId"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is an inbound subscribe/unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
}

func NewClient() *Client {
	return &Client{ID: uuid.NewString(), Topics: []string{}, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}
	logger  zerolog.Logger
	now     func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "websocket").Logger(),
		now:     time.Now,
	}
}

// PatientTopic is the topic carrying a patient's chart events.
func PatientTopic(patientID string) string {
	return "Patient/" + patientID
}

// ValidTopic accepts AllTopics and "Patient/<id>".
func ValidTopic(topic string) bool {
	if topic == AllTopics {
		return true
	}
	id, ok := strings.CutPrefix(topic, "Patient/")
	return ok && id != "" && !strings.Contains(id, "/")
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.addLocked(client, topic)
	}
}

// Unregister removes the client from every topic and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.removeLocked(client, topic)
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds topics to a registered client. Invalid topics are ignored
// and returned.
func (h *Hub) Subscribe(client *Client, topics []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var rejected []string
	for _, topic := range topics {
		if !ValidTopic(topic) {
			rejected = append(rejected, topic)
			continue
		}
		if _, dup := h.clients[topic][client]; dup {
			continue
		}
		h.addLocked(client, topic)
		client.Topics = append(client.Topics, topic)
	}
	return rejected
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
		h.removeLocked(client, t)
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) addLocked(client *Client, topic string) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) removeLocked(client *Client, topic string) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if rejected := h.Subscribe(client, msg.Topics); len(rejected) > 0 {
			h.logger.Debug().Str("client_id", client.ID).Strs("topics", rejected).Msg("rejected topics")
		}
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast sends an event to subscribers of topic and of AllTopics. Each
// client receives it at most once; clients with a full buffer are skipped.
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*Client]struct{})
	for _, t := range []string{topic, AllTopics} {
		for client := range h.clients[t] {
			if _, done := sent[client]; done {
				continue
			}
			sent[client] = struct{}{}
			select {
			case client.Send <- data:
			default:
				h.logger.Warn().Str("client_id", client.ID).Str("type", event.Type).Msg("client buffer full, event dropped")
			}
		}
	}
}

// PublishChartEvent broadcasts a domain event on the patient's topic. The
// resource type is derived from the event type prefix, so
// "medication.replaced" becomes "Medication".
func (h *Hub) PublishChartEvent(_ context.Context, patientID, eventType, resourceID string, payload interface{}) {
	event := Event{
		Type:         eventType,
		Topic:        PatientTopic(patientID),
		PatientID:    patientID,
		ResourceType: resourceType(eventType),
		ResourceID:   resourceID,
		Timestamp:    h.now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error().Err(err).Str("type", eventType).Msg("marshal event payload")
			return
		}
		event.Data = data
	}
	h.Broadcast(event.Topic, event)
}

func resourceType(eventType string) string {
	prefix, _, _ := strings.Cut(eventType, ".")
	var b strings.Builder
	for _, part := range strings.Split(prefix, "-") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Handler upgrades HTTP connections and pumps events to the client.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler accepts connections from the given origins; "*" or an empty
// list allows any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSpace(o)] = true
	}
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (wsh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades the connection and subscribes the client to any
// ?topic= query values before starting the pumps.
func (wsh *Handler) HandleConnect(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient()
	wsh.hub.Register(client)
	if topics := c.QueryParams()["topic"]; len(topics) > 0 {
		wsh.hub.Subscribe(client, topics)
	}
	wsh.hub.logger.Debug().Str("client_id", client.ID).Msg("client connected")

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)
	return nil
}

func (wsh *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
		wsh.hub.logger.Debug().Str("client_id", client.ID).Msg("client disconnected")
	}()

	ws.SetReadLimit(4096)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		wsh.hub.ProcessMessage(client, msg)
	}
}

func (wsh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
