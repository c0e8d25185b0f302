package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send pongs
	sendBufferSize = 256              // messages in each socket's outbound queue
)

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket socket. There is no end-user
// account system (§9) — a socket is identified purely by the settlement
// address it connected with, taken from the query string, trimmed and
// lower-cased.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte // buffered outbound queue; order within it is preserved
	address string      // "" = anonymous, never registered in the address map
}

// ──────────────────────────────────────────────────────────────────────────────
// StateProvider — injected dependency for the STATE_SYNC handshake
// ──────────────────────────────────────────────────────────────────────────────

// StateProvider supplies the snapshot pushed to a socket right after
// connect (§4.8, §6's STATE_SYNC). Kept as its own small interface so the
// hub has no import-time dependency on the market/position services.
type StateProvider interface {
	CurrentMarkets(ctx context.Context) ([]domain.MarketSummary, error)
	PositionsByAddress(ctx context.Context, address string) ([]domain.Position, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub is the WS Fan-out Manager (§4.8). It maintains the set of all
// connected sockets and a mapping from participant address to that
// participant's subset of sockets. Registration, unregistration and global
// broadcasts run on the Run event loop; targeted sends, clear and the
// connection count read the maps from other goroutines, so mu guards them.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	subscribers map[string]map[*Client]bool // address -> sockets registered to it

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	state StateProvider // optional; nil disables STATE_SYNC payload enrichment

	upgrader websocket.Upgrader
}

// NewHub creates a Hub ready to be started with Run().
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subscribers: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte, 512),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// SetStateProvider injects the STATE_SYNC data source post-construction.
func (h *Hub) SetStateProvider(p StateProvider) { h.state = p }

// ──────────────────────────────────────────────────────────────────────────────
// Run — hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration, and broadcast events
// sequentially. Call it once as a goroutine before ServeWs is used.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addConnection(client)
			h.broadcastJSON(ConnectionCountMessage{Type: MsgTypeConnectionCount, Count: h.getConnectionCount()})

		case client := <-h.unregister:
			h.removeConnection(client)
			h.broadcastJSON(ConnectionCountMessage{Type: MsgTypeConnectionCount, Count: h.getConnectionCount()})

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				enqueueOrDrop(client, message)
			}
			h.mu.RUnlock()
		}
	}
}

// addConnection registers a socket and, if it carries an address, indexes
// it under that address's subscriber set (§4.8).
func (h *Hub) addConnection(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if client.address != "" {
		set, ok := h.subscribers[client.address]
		if !ok {
			set = make(map[*Client]bool)
			h.subscribers[client.address] = set
		}
		set[client] = true
	}
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

// removeConnection unregisters a socket from both collections and closes
// its outbound queue, waking its writePump.
func (h *Hub) removeConnection(client *Client) {
	h.mu.Lock()
	removed := false
	if _, ok := h.clients[client]; ok {
		removed = true
		delete(h.clients, client)
		if client.address != "" {
			if set, ok := h.subscribers[client.address]; ok {
				delete(set, client)
				if len(set) == 0 {
					delete(h.subscribers, client.address)
				}
			}
		}
		close(client.send)
	}
	h.mu.Unlock()
	if removed {
		metrics.WSConnections.Dec()
	}
}

// getConnectionCount returns the current number of connected sockets.
func (h *Hub) getConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ConnectedCount is the exported form of getConnectionCount, used by the API
// surface's admin/state endpoint.
func (h *Hub) ConnectedCount() int { return h.getConnectionCount() }

// clear closes every connected socket, used by admin reset (§6's
// POST /api/admin/reset).
func (h *Hub) clear() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.conn.Close() // readPump observes the close and unregisters itself
	}
}

// Clear is the exported form of clear.
func (h *Hub) Clear() { h.clear() }

// enqueueOrDrop delivers message to client's outbound queue, preserving
// enqueue order. On sustained back-pressure (queue full) the socket is
// dropped rather than blocking the broadcaster (§4.8, §5's anti-pattern
// guidance against holding the subscriber lock across socket writes).
func enqueueOrDrop(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		go client.hub.disconnectSlow(client)
	}
}

// disconnectSlow force-closes a socket that fell behind on its outbound
// queue; readPump/writePump will observe the close and unregister it.
func (h *Hub) disconnectSlow(client *Client) {
	log.Printf("ws.Hub: socket for %q fell behind, dropping", client.address)
	_ = client.conn.Close()
}

// ──────────────────────────────────────────────────────────────────────────────
// broadcast / sendTo / sendToSocket — §4.8's three delivery primitives
// ──────────────────────────────────────────────────────────────────────────────

// broadcast serializes message once and enqueues it to every connected
// socket, silently dropping send errors for any single socket.
func (h *Hub) broadcastJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws.Hub: marshal error: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("ws.Hub: broadcast channel full, message dropped")
	}
}

// sendTo delivers message only to sockets registered under address; a
// no-op when address has no connected sockets.
func (h *Hub) sendToJSON(address string, v interface{}) {
	if address == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws.Hub: marshal error: %v", err)
		return
	}
	address = strings.ToLower(address)

	h.mu.RLock()
	set := h.subscribers[address]
	sockets := make([]*Client, 0, len(set))
	for c := range set {
		sockets = append(sockets, c)
	}
	h.mu.RUnlock()

	for _, c := range sockets {
		enqueueOrDrop(c, data)
	}
}

// sendToSocket delivers message to one specific socket, used for the
// initial STATE_SYNC handshake on connect (§4.8).
func (h *Hub) sendToSocket(client *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws.Hub: marshal error: %v", err)
		return
	}
	enqueueOrDrop(client, data)
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs — HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades an HTTP request to a WebSocket connection. Clients
// connect to /ws?address=<hex>; the address is opaque to the hub and is
// trimmed and lower-cased for per-address routing. Anonymous connections (no
// address) still receive global broadcasts but never targeted sends.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws.ServeWs: upgrade failed: %v", err)
		return
	}

	address := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("address")))

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		address: address,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
	go h.pushStateSync(client)
}

// pushStateSync builds and sends the STATE_SYNC snapshot (§4.8, §6).
// Runs in its own goroutine so a slow state provider never blocks the
// register event on the hub's event loop.
func (h *Hub) pushStateSync(client *Client) {
	if h.state == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	markets, err := h.state.CurrentMarkets(ctx)
	if err != nil {
		log.Printf("ws.pushStateSync: load markets: %v", err)
		markets = nil
	}
	var positions []domain.Position
	if client.address != "" {
		positions, err = h.state.PositionsByAddress(ctx, client.address)
		if err != nil {
			log.Printf("ws.pushStateSync: load positions for %q: %v", client.address, err)
			positions = nil
		}
	}

	h.sendToSocket(client, StateSyncMessage{
		Type:      MsgTypeStateSync,
		Markets:   markets,
		Positions: positions,
		Timestamp: time.Now(),
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection, preserving enqueue order. It also sends ping
// frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the WebSocket connection. Only pong frames
// matter (they reset the read deadline) — this is a server-push-only
// protocol (§4.8) and all other inbound frames are discarded. When the
// connection drops the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws.readPump: unexpected close for %q: %v", c.address, err)
			}
			return
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast helpers — implement service.Broadcaster, service.OrderBookBroadcaster,
// and the resolution pipeline's broadcaster interfaces.
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastMarketSummary satisfies service.Broadcaster.
func (h *Hub) BroadcastMarketSummary(summary *domain.MarketSummary) {
	h.broadcastJSON(OddsUpdateMessage{
		Type:       MsgTypeOddsUpdate,
		MarketID:   summary.ID,
		Prices:     summary.Prices,
		Quantities: summary.Quantities,
		Volume:     summary.Volume,
		Timestamp:  time.Now(),
	})
}

// BroadcastVolumeUpdate satisfies service.Broadcaster and is reused by the
// LP Manager (pool-value-affecting deposit/withdrawal has no single
// market, so marketID is uuid.Nil in that case).
func (h *Hub) BroadcastVolumeUpdate(marketID uuid.UUID, volume string) {
	v, err := decimal.NewFromString(volume)
	if err != nil {
		v = decimal.Zero
	}
	h.broadcastJSON(VolumeUpdateMessage{
		Type:      MsgTypeVolumeUpdate,
		MarketID:  marketID,
		Volume:    v,
		Timestamp: time.Now(),
	})
}

// BroadcastOrderPlaced satisfies service.OrderBookBroadcaster. It both
// broadcasts the public ORDER_PLACED event and notifies the order's own
// owner directly.
func (h *Hub) BroadcastOrderPlaced(o *domain.Order) {
	h.broadcastJSON(OrderPlacedMessage{Type: MsgTypeOrderPlaced, Order: *o, Timestamp: time.Now()})
	h.sendToJSON(o.UserAddress, OrderPlacedMessage{Type: MsgTypeOrderPlaced, Order: *o, Timestamp: time.Now()})
	h.broadcastJSON(OrderbookUpdateMessage{Type: MsgTypeOrderbookUpdate, MarketID: o.MarketID, Timestamp: time.Now()})
}

// BroadcastOrderFilled satisfies service.OrderBookBroadcaster.
func (h *Hub) BroadcastOrderFilled(o *domain.Order, fill *domain.Fill) {
	h.broadcastJSON(OrderFilledMessage{Type: MsgTypeOrderFilled, Order: *o, Fill: *fill, Timestamp: time.Now()})
	h.broadcastJSON(OrderbookUpdateMessage{Type: MsgTypeOrderbookUpdate, MarketID: o.MarketID, Timestamp: time.Now()})
	h.sendToJSON(o.UserAddress, PositionAddedMessage{Type: MsgTypePositionAdded, Timestamp: time.Now()})
}

// BroadcastOrderCancelled satisfies service.OrderBookBroadcaster.
func (h *Hub) BroadcastOrderCancelled(o *domain.Order) {
	h.broadcastJSON(OrderCancelledMessage{Type: MsgTypeOrderCancelled, Order: *o, Timestamp: time.Now()})
	h.sendToJSON(o.UserAddress, OrderCancelledMessage{Type: MsgTypeOrderCancelled, Order: *o, Timestamp: time.Now()})
}

// BroadcastOrderbookUpdate satisfies service.OrderBookBroadcaster.
func (h *Hub) BroadcastOrderbookUpdate(marketID uuid.UUID) {
	h.broadcastJSON(OrderbookUpdateMessage{Type: MsgTypeOrderbookUpdate, MarketID: marketID, Timestamp: time.Now()})
}

// BroadcastMarketStatus announces a market lifecycle transition, including
// resolution (result non-nil).
func (h *Hub) BroadcastMarketStatus(marketID uuid.UUID, status domain.MarketStatus, result *int) {
	h.broadcastJSON(MarketStatusMessage{Type: MsgTypeMarketStatus, MarketID: marketID, Status: status, Result: result, Timestamp: time.Now()})
}

// BroadcastGameState announces the admin kill-switch flipping.
func (h *Hub) BroadcastGameState(active bool) {
	h.broadcastJSON(GameStateMessage{Type: MsgTypeGameState, Active: active, Timestamp: time.Now()})
}

// BroadcastGameCreated announces a freshly scheduled/activated game.
func (h *Hub) BroadcastGameCreated(game *domain.Game) {
	h.broadcastJSON(GameCreatedMessage{Type: MsgTypeGameCreated, Game: *game, Timestamp: time.Now()})
}

// BroadcastConfigUpdated announces a runtime admin config change.
func (h *Hub) BroadcastConfigUpdated(feePercent, sensitivity string) {
	fee, _ := decimal.NewFromString(feePercent)
	sens, _ := decimal.NewFromString(sensitivity)
	h.broadcastJSON(ConfigUpdatedMessage{
		Type:                  MsgTypeConfigUpdated,
		TransactionFeePercent: fee,
		LMSRSensitivityFactor: sens,
		Timestamp:             time.Now(),
	})
}

// BroadcastPoolUpdate announces the LP pool's refreshed read model.
func (h *Hub) BroadcastPoolUpdate(stats domain.PoolStats) {
	h.broadcastJSON(PoolUpdateMessage{Type: MsgTypePoolUpdate, Stats: stats, Timestamp: time.Now()})
}

// BroadcastLPDeposit notifies all subscribers that a deposit completed.
func (h *Hub) BroadcastLPDeposit(address string, amount, shares, sharePrice, poolValueAfter string) {
	a, _ := decimal.NewFromString(amount)
	s, _ := decimal.NewFromString(shares)
	sp, _ := decimal.NewFromString(sharePrice)
	pv, _ := decimal.NewFromString(poolValueAfter)
	msg := LPDepositMessage{Type: MsgTypeLPDeposit, Address: address, Amount: a, Shares: s, SharePrice: sp, PoolValueAfter: pv, Timestamp: time.Now()}
	h.broadcastJSON(msg)
	h.sendToJSON(address, msg)
}

// BroadcastLPWithdrawal notifies all subscribers that a withdrawal completed.
func (h *Hub) BroadcastLPWithdrawal(address string, amountOut, shares, sharePrice, poolValueAfter string) {
	a, _ := decimal.NewFromString(amountOut)
	s, _ := decimal.NewFromString(shares)
	sp, _ := decimal.NewFromString(sharePrice)
	pv, _ := decimal.NewFromString(poolValueAfter)
	msg := LPWithdrawalMessage{Type: MsgTypeLPWithdrawal, Address: address, AmountOut: a, Shares: s, SharePrice: sp, PoolValueAfter: pv, Timestamp: time.Now()}
	h.broadcastJSON(msg)
	h.sendToJSON(address, msg)
}

// BroadcastBetResult notifies one address that its LMSR position resolved.
func (h *Hub) BroadcastBetResult(address string, positionID, marketID uuid.UUID, won bool, payout, profit string) {
	p, _ := decimal.NewFromString(payout)
	pr, _ := decimal.NewFromString(profit)
	h.sendToJSON(address, BetResultMessage{
		Type: MsgTypeBetResult, PositionID: positionID, MarketID: marketID,
		Won: won, Payout: p, Profit: pr, Timestamp: time.Now(),
	})
}

// BroadcastP2PBetResult notifies one address that its filled P2P order resolved.
func (h *Hub) BroadcastP2PBetResult(address string, orderID, marketID uuid.UUID, won bool, payout, profit string) {
	p, _ := decimal.NewFromString(payout)
	pr, _ := decimal.NewFromString(profit)
	h.sendToJSON(address, P2PBetResultMessage{
		Type: MsgTypeP2PBetResult, OrderID: orderID, MarketID: marketID,
		Won: won, Payout: p, Profit: pr, Timestamp: time.Now(),
	})
}

// BroadcastSessionSettled notifies one address that its settlement-service
// session closed.
func (h *Hub) BroadcastSessionSettled(address, appSessionID string, positionID uuid.UUID) {
	h.sendToJSON(address, SessionSettledMessage{
		Type: MsgTypeSessionSettled, PositionID: positionID, AppSessionID: appSessionID, Timestamp: time.Now(),
	})
}

// BroadcastSessionVersionUpdated notifies one address that its session
// version advanced (§8's monotonic-version invariant, surfaced live).
func (h *Hub) BroadcastSessionVersionUpdated(address, appSessionID string, positionID uuid.UUID, version int64) {
	h.sendToJSON(address, SessionVersionUpdatedMessage{
		Type: MsgTypeSessionVersionBump, PositionID: positionID, AppSessionID: appSessionID,
		Version: version, Timestamp: time.Now(),
	})
}

// SendError writes an error message directly to one socket's queue.
func (h *Hub) SendError(client *Client, code, message string) {
	h.sendToSocket(client, ErrorMessage{Type: MsgTypeError, Code: code, Message: message})
}
