// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"card-print-service/internal/model"
	"card-print-service/internal/printer"
	"card-print-service/internal/utils"
)

// StatusProvider reports per-backend printer status
type StatusProvider interface {
	Status(ctx context.Context) ([]printer.BackendStatus, error)
}

// WebSocketHandler streams print events to operator consoles
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	status      StatusProvider
	eventBus    *EventBus
	logger      *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler fed by eventBus
func NewWebSocketHandler(eventBus *EventBus, status StatusProvider, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		connections: NewConnectionManager(),
		status:      status,
		eventBus:    eventBus,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/print-events", h.HandlePrintEvents)
	router.GET("/stats", h.GetStats)
}

// GetStats returns the connected event stream clients
// @Summary Event stream statistics
// @Tags websocket
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ConnectionStats}
// @Router /ws/stats [get]
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Event stream statistics retrieved", h.GetConnectionStats())
}

// Run forwards bus events to connected clients until ctx is done
func (h *WebSocketHandler) Run(ctx context.Context) {
	id, events := h.eventBus.Subscribe()
	defer h.eventBus.Unsubscribe(id)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			h.BroadcastPrintEvent(event)
		case <-ctx.Done():
			h.connections.Close()
			return
		}
	}
}

// HandlePrintEvents upgrades to a print event stream
// @Summary Print event stream
// @Description WebSocket stream of device_found, device_not_found, handshake_timeout, dispatch_success, dispatch_failure and cleanup_failure events
// @Tags Printer
// @Param backend query string false "Only events of this backend" Enums(thermal, document)
// @Success 101 {string} string "Switching Protocols"
// @Failure 400 {object} utils.APIResponse "Invalid backend"
// @Router /ws/print-events [get]
func (h *WebSocketHandler) HandlePrintEvents(c *gin.Context) {
	backend := c.Query("backend")
	if backend != "" {
		if _, err := model.ParseBackendKind(backend); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid backend", err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Backend:     backend,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Print event client connected",
		zap.String("client_id", client.ID),
		zap.String("backend", backend),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe", "unsubscribe":
		topic := topicOf(message)
		if topic == "" {
			h.sendError(client, "topic is required")
			return
		}
		if message.Type == "subscribe" {
			client.Subscribe(topic)
		} else {
			client.Unsubscribe(topic)
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      message.Type + "d",
			Data:      map[string]interface{}{"topic": topic},
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case "status":
		go h.sendStatus(client, message.RequestID)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.sendError(client, "unknown message type: "+message.Type)
	}
}

func (h *WebSocketHandler) sendStatus(client *Client, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statuses, err := h.status.Status(ctx)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}
	h.sendMessage(client, &WebSocketMessage{
		Type:      "printer_status",
		Data:      statuses,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	h.connections.Broadcast(messageBytes, func(c *Client) bool { return c == client })
}

func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
	})
}

// BroadcastPrintEvent delivers one print event to every interested client
func (h *WebSocketHandler) BroadcastPrintEvent(event utils.PrintEvent) {
	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      "print_event",
		Data:      event,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	dropped := h.connections.Broadcast(messageBytes, func(c *Client) bool {
		return c.Wants(event.Type, event.Backend)
	})
	if dropped > 0 {
		h.logger.Warn("Client send channel full during broadcast",
			zap.String("event", event.Type),
			zap.Int("dropped", dropped),
		)
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

func topicOf(message *WebSocketMessage) string {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		return ""
	}
	topic, _ := data["topic"].(string)
	return topic
}

// originChecker accepts same-host requests and the configured origins; "*" allows all
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
