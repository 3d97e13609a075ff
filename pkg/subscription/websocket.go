package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketClient manages a slot subscription over a Solana pubsub connection
type WebSocketClient struct {
	url            string
	conn           *websocket.Conn
	mu             sync.RWMutex
	writeMu        sync.Mutex
	subscriptions  map[uint64]*Subscription
	nextID         uint64
	handlers       map[uint64]SlotUpdateHandler
	reconnectDelay time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	connected      bool
}

// Subscription represents a slot subscription
type Subscription struct {
	ID    uint64
	SubID uint64 // Solana subscription ID
}

// SlotInfo is the payload of a slotNotification.
type SlotInfo struct {
	Parent uint64 `json:"parent"`
	Root   uint64 `json:"root"`
	Slot   uint64 `json:"slot"`
}

// SlotUpdateHandler is called for every slot the node reports
type SlotUpdateHandler func(info SlotInfo)

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NotificationMessage represents a subscription notification
type NotificationMessage struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

// NotificationParams contains subscription notification data
type NotificationParams struct {
	Result       SlotInfo `json:"result"`
	Subscription uint64   `json:"subscription"`
}

// NewWebSocketClient creates a new WebSocket client
func NewWebSocketClient(ctx context.Context, wsURL string) (*WebSocketClient, error) {
	clientCtx, cancel := context.WithCancel(ctx)

	client := &WebSocketClient{
		url:            wsURL,
		subscriptions:  make(map[uint64]*Subscription),
		handlers:       make(map[uint64]SlotUpdateHandler),
		reconnectDelay: 5 * time.Second,
		ctx:            clientCtx,
		cancel:         cancel,
		nextID:         1,
	}

	if err := client.connect(); err != nil {
		cancel()
		return nil, err
	}

	// Start message reader
	go client.readMessages()

	// Start reconnection handler
	go client.handleReconnection()

	return client, nil
}

// connect establishes WebSocket connection
func (c *WebSocketClient) connect() error {
	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	log.Printf("WebSocket connected to %s", c.url)

	return nil
}

// SubscribeSlot subscribes to slot updates
func (c *WebSocketClient) SubscribeSlot(handler SlotUpdateHandler) (uint64, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	c.subscriptions[id] = &Subscription{ID: id}
	c.mu.Unlock()

	req := RPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "slotSubscribe",
		Params:  []interface{}{},
	}

	if err := c.sendRequest(req); err != nil {
		c.mu.Lock()
		delete(c.subscriptions, id)
		delete(c.handlers, id)
		c.mu.Unlock()
		return 0, err
	}

	return id, nil
}

// Unsubscribe removes a slot subscription
func (c *WebSocketClient) Unsubscribe(subID uint64) error {
	c.mu.Lock()
	sub, exists := c.subscriptions[subID]
	if !exists {
		c.mu.Unlock()
		return fmt.Errorf("subscription not found: %d", subID)
	}
	delete(c.subscriptions, subID)
	delete(c.handlers, subID)
	solanaSubID := sub.SubID
	c.mu.Unlock()

	if solanaSubID == 0 {
		// Subscription not yet confirmed
		return nil
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	return c.sendRequest(RPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "slotUnsubscribe",
		Params:  []interface{}{solanaSubID},
	})
}

// sendRequest sends a JSON-RPC request
func (c *WebSocketClient) sendRequest(req RPCRequest) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readMessages reads incoming messages
func (c *WebSocketClient) readMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		connected := c.connected
		c.mu.RUnlock()

		if conn == nil || !connected {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			log.Printf("WebSocket read error: %v", err)
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			continue
		}

		c.handleMessage(message)
	}
}

// handleMessage processes incoming messages
func (c *WebSocketClient) handleMessage(data []byte) {
	// Try to parse as notification first
	var notification NotificationMessage
	if err := json.Unmarshal(data, &notification); err == nil && notification.Method == "slotNotification" {
		c.handleSlotNotification(notification)
		return
	}

	// Parse as response
	var response RPCResponse
	if err := json.Unmarshal(data, &response); err != nil {
		log.Printf("Failed to parse WebSocket message: %v", err)
		return
	}

	c.handleResponse(response)
}

// handleResponse records the Solana subscription ID of a confirmed subscribe
func (c *WebSocketClient) handleResponse(response RPCResponse) {
	if response.Error != nil {
		log.Printf("RPC error: %s", response.Error.Message)
		return
	}

	var subID uint64
	if err := json.Unmarshal(response.Result, &subID); err != nil {
		return
	}

	c.mu.Lock()
	if sub, exists := c.subscriptions[response.ID]; exists {
		sub.SubID = subID
	}
	c.mu.Unlock()
}

// handleSlotNotification dispatches a slot to the subscription's handler
func (c *WebSocketClient) handleSlotNotification(notification NotificationMessage) {
	c.mu.RLock()
	var handler SlotUpdateHandler
	for _, sub := range c.subscriptions {
		if sub.SubID == notification.Params.Subscription {
			handler = c.handlers[sub.ID]
			break
		}
	}
	c.mu.RUnlock()

	if handler == nil {
		return
	}
	handler(notification.Params.Result)
}

// handleReconnection manages reconnection logic
func (c *WebSocketClient) handleReconnection() {
	ticker := time.NewTicker(c.reconnectDelay)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			connected := c.connected
			c.mu.RUnlock()

			if !connected {
				log.Printf("Attempting to reconnect WebSocket...")
				if err := c.reconnect(); err != nil {
					log.Printf("Reconnection failed: %v", err)
				} else {
					log.Printf("WebSocket reconnected successfully")
				}
			}
		}
	}
}

// reconnect attempts to reconnect and resubscribe
func (c *WebSocketClient) reconnect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	if err := c.connect(); err != nil {
		return err
	}

	c.mu.Lock()
	ids := make([]uint64, 0, len(c.subscriptions))
	for id, sub := range c.subscriptions {
		sub.SubID = 0
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		req := RPCRequest{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "slotSubscribe",
			Params:  []interface{}{},
		}
		if err := c.sendRequest(req); err != nil {
			log.Printf("Failed to resubscribe slot subscription %d: %v", id, err)
		}
	}

	return nil
}

// Close closes the WebSocket connection
func (c *WebSocketClient) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}

// IsConnected returns whether the client is connected
func (c *WebSocketClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
