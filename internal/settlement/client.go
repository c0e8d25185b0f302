package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Client is the hub's connection to the external settlement service
// (§4.6). A single instance is shared process-wide; it lazily connects and
// authenticates on the first RPC, transparently reconnects on connection
// loss, and de-duplicates concurrent connect attempts behind one in-flight
// future.
type Client struct {
	url        string
	auth       *auth
	rpcTimeout time.Duration
	logger     *slog.Logger

	connMu      sync.Mutex
	conn        *websocket.Conn
	connectOnce *connectFuture // non-nil while a connect attempt is in flight

	pendingMu sync.Mutex
	pending   map[string]chan rpcReply

	nextIDMu sync.Mutex
	nextID   uint64
}

// connectFuture de-duplicates concurrent lazy-connect attempts: the first
// caller starts the dial+handshake, every other concurrent caller awaits
// the same result instead of dialing again.
type connectFuture struct {
	done chan struct{}
	err  error
}

// NewClient creates a settlement-service client. The connection is not
// established until the first RPC (lazy connect, §4.6).
func NewClient(url, privateKeyHex, applicationName string, rpcTimeout time.Duration, logger *slog.Logger) (*Client, error) {
	a, err := newAuth(privateKeyHex, applicationName)
	if err != nil {
		return nil, fmt.Errorf("settlement.NewClient: %w", err)
	}
	if rpcTimeout <= 0 {
		rpcTimeout = defaultRPCTimeout
	}
	return &Client{
		url:        url,
		auth:       a,
		rpcTimeout: rpcTimeout,
		logger:     logger.With("component", "settlement_client"),
		pending:    make(map[string]chan rpcReply),
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Connection management
// ──────────────────────────────────────────────────────────────────────────────

// ensureConnected returns once a live, authenticated connection exists,
// either by returning immediately (already connected), joining an in-flight
// connect attempt, or starting a new one.
func (c *Client) ensureConnected(ctx context.Context) error {
	c.connMu.Lock()
	if c.conn != nil {
		c.connMu.Unlock()
		return nil
	}
	if c.connectOnce != nil {
		fut := c.connectOnce
		c.connMu.Unlock()
		select {
		case <-fut.done:
			return fut.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fut := &connectFuture{done: make(chan struct{})}
	c.connectOnce = fut
	c.connMu.Unlock()

	err := c.connectAndAuthenticate(ctx)

	c.connMu.Lock()
	fut.err = err
	c.connectOnce = nil
	c.connMu.Unlock()
	close(fut.done)

	return err
}

func (c *Client) connectAndAuthenticate(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("settlement.connect: dial: %w", err)
	}

	if err := c.handshake(ctx, conn); err != nil {
		conn.Close()
		return fmt.Errorf("settlement.connect: handshake: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.readLoop(conn)

	c.logger.Info("settlement service connected", "address", c.auth.address.Hex())
	return nil
}

// handshake performs the three-step EIP-712-style auth: request → challenge
// → verify (§4.6).
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) error {
	timestamp := nowUnixString()
	sig, err := c.auth.signAuthRequest(timestamp)
	if err != nil {
		return fmt.Errorf("sign auth request: %w", err)
	}

	reqPayload, _ := json.Marshal(map[string]string{
		"address":   c.auth.address.Hex(),
		"timestamp": timestamp,
		"signature": sig,
	})
	if err := conn.WriteJSON(rpcEnvelope{ID: "auth-request", Method: "auth_request", Params: reqPayload}); err != nil {
		return fmt.Errorf("write auth_request: %w", err)
	}

	var challengeReply rpcReply
	if err := conn.ReadJSON(&challengeReply); err != nil {
		return fmt.Errorf("read challenge: %w", err)
	}
	if challengeReply.Error != nil {
		return fmt.Errorf("%w: %s", domain.ErrRemoteRPCFail, challengeReply.Error.Message)
	}
	var challenge authChallenge
	if err := json.Unmarshal(challengeReply.Result, &challenge); err != nil {
		return fmt.Errorf("decode challenge: %w", err)
	}

	verifySig, err := c.auth.signChallenge(challenge.Challenge)
	if err != nil {
		return fmt.Errorf("sign challenge: %w", err)
	}
	verifyPayload, _ := json.Marshal(map[string]string{
		"challenge": challenge.Challenge,
		"signature": verifySig,
	})
	if err := conn.WriteJSON(rpcEnvelope{ID: "auth-verify", Method: "auth_verify", Params: verifyPayload}); err != nil {
		return fmt.Errorf("write auth_verify: %w", err)
	}

	var verifyReply rpcReply
	if err := conn.ReadJSON(&verifyReply); err != nil {
		return fmt.Errorf("read verify reply: %w", err)
	}
	if verifyReply.Error != nil {
		return fmt.Errorf("%w: %s", domain.ErrRemoteRPCFail, verifyReply.Error.Message)
	}
	var result authResult
	if err := json.Unmarshal(verifyReply.Result, &result); err != nil {
		return fmt.Errorf("decode verify result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%w: handshake rejected", domain.ErrRemoteRPCFail)
	}
	return nil
}

// readLoop dispatches replies to their pending requester by ID. Unsolicited
// messages (no matching pending entry) are ignored (§4.6). When the
// connection drops, every still-pending request is failed with
// ErrNotConnected so callers don't hang.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var reply rpcReply
		if err := conn.ReadJSON(&reply); err != nil {
			c.logger.Warn("settlement connection lost", "error", err)
			c.handleDisconnect(conn)
			return
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[reply.ID]
		if ok {
			delete(c.pending, reply.ID)
		}
		c.pendingMu.Unlock()

		if !ok {
			continue // unsolicited message, ignored per §4.6
		}
		ch <- reply
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.pendingMu.Unlock()
}

// ──────────────────────────────────────────────────────────────────────────────
// RPC plumbing
// ──────────────────────────────────────────────────────────────────────────────

// writeJSON serializes every outbound RPC through connMu: gorilla/websocket
// forbids concurrent writes to the same connection, so a balance read racing
// a deposit or a closeSession call must not write at the same time.
func (c *Client) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, fmt.Errorf("settlement.%s: %w", method, err)
	}

	id := c.newRequestID()
	respCh := make(chan rpcReply, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("settlement.%s: encode params: %w", method, err)
	}

	if err := c.writeJSON(rpcEnvelope{ID: id, Method: method, Params: paramsJSON}); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("settlement.%s: %w", method, domain.ErrNotConnected)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	select {
	case reply, ok := <-respCh:
		if !ok {
			return nil, fmt.Errorf("settlement.%s: %w", method, domain.ErrNotConnected)
		}
		if reply.Error != nil {
			return nil, fmt.Errorf("settlement.%s: %w: %s", method, domain.ErrRemoteRPCFail, reply.Error.Message)
		}
		return reply.Result, nil
	case <-timeoutCtx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("settlement.%s: %w", method, domain.ErrTimeout)
	}
}

func (c *Client) newRequestID() string {
	c.nextIDMu.Lock()
	defer c.nextIDMu.Unlock()
	c.nextID++
	return fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), c.nextID)
}

// IsConnected reports whether a live connection to the settlement service
// currently exists, without triggering a lazy connect.
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Address returns the market-maker's own settlement-service participant
// address, used as the counterparty/allocation identity in session RPCs.
func (c *Client) Address() string {
	return c.auth.address.Hex()
}

// ──────────────────────────────────────────────────────────────────────────────
// Operations (§4.6)
// ──────────────────────────────────────────────────────────────────────────────

// CreateAppSession opens a new app session with the given counterparty and
// initial allocations.
func (c *Client) CreateAppSession(ctx context.Context, p CreateAppSessionParams) (*AppSession, error) {
	raw, err := c.call(ctx, "create_app_session", p)
	if err != nil {
		return nil, err
	}
	var session AppSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("settlement.CreateAppSession: decode: %w", err)
	}
	return &session, nil
}

// SubmitAppState advances an app session's state. version must be strictly
// greater than the last known version; the service rejects regressions.
func (c *Client) SubmitAppState(ctx context.Context, p SubmitAppStateParams) (int64, error) {
	raw, err := c.call(ctx, "submit_app_state", p)
	if err != nil {
		return 0, err
	}
	var result struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("settlement.SubmitAppState: decode: %w", err)
	}
	return result.Version, nil
}

// CloseSession finalizes an app session; the given allocations become
// effective balances for its participants.
func (c *Client) CloseSession(ctx context.Context, p CloseSessionParams) error {
	_, err := c.call(ctx, "close_session", p)
	return err
}

// Transfer moves asset balance from the hub's market-maker account to
// destination.
func (c *Client) Transfer(ctx context.Context, p TransferParams) error {
	_, err := c.call(ctx, "transfer", p)
	return err
}

// GetBalance returns the market-maker account's balance in the primary
// asset, converted from the wire micro-unit string to decimal dollars.
// Satisfies service.BalanceSource.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	raw, err := c.call(ctx, "get_balance", struct{}{})
	if err != nil {
		return decimal.Zero, err
	}
	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return decimal.Zero, fmt.Errorf("settlement.GetBalance: decode: %w", err)
	}
	return domain.FromMicroUnits(result.Balance), nil
}

// GetAppSessions lists app sessions for diagnostics, optionally filtered.
func (c *Client) GetAppSessions(ctx context.Context, filter AppSessionFilter) ([]AppSession, error) {
	raw, err := c.call(ctx, "get_app_sessions", filter)
	if err != nil {
		return nil, err
	}
	var sessions []AppSession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, fmt.Errorf("settlement.GetAppSessions: decode: %w", err)
	}
	return sessions, nil
}
