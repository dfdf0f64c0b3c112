package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"punter/internal/clock"
	"punter/internal/creds"
	"punter/internal/wire"
)

const (
	DIAL_TIMEOUT    = 8 * time.Second
	REQUEST_TIMEOUT = 12 * time.Second
	RECONNECT_DELAY = 1500 * time.Millisecond
)

// Config wires the bridge's collaborators. Zero durations fall back to the
// package defaults.
type Config struct {
	URL            string
	Creds          creds.Store
	Scheduler      clock.Scheduler
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	ReconnectDelay time.Duration
}

type callResult struct {
	data json.RawMessage
	sv   int64
	err  *wire.Error
}

// pendingCall is one correlation-table entry. The map entry is the single
// source of truth for the response/timeout race: whichever side takes it out
// first delivers, the other is a no-op.
type pendingCall struct {
	ch    chan callResult
	timer clock.Timer
}

type readyFuture struct {
	done chan struct{}
	err  error
}

// Bridge owns the socket, the session tokens, the request correlation table
// and the session state blob. Every store depends on it.
type Bridge struct {
	cfg     Config
	session *Session
	bus     *Bus

	mu             sync.Mutex
	conn           *websocket.Conn
	gen            int
	connecting     chan struct{}
	connectErr     error
	pending        map[string]*pendingCall
	authedOnSocket bool
	ready          *readyFuture
	reconnectTimer clock.Timer
	closed         bool

	writeMu sync.Mutex
}

func New(cfg Config) *Bridge {
	if cfg.Scheduler == nil {
		cfg.Scheduler = clock.System()
	}
	if cfg.Creds == nil {
		cfg.Creds = creds.NewMemory()
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DIAL_TIMEOUT
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = REQUEST_TIMEOUT
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = RECONNECT_DELAY
	}

	b := &Bridge{
		cfg:     cfg,
		session: NewSession(),
		bus:     NewBus(),
		pending: make(map[string]*pendingCall),
	}

	b.bus.Subscribe(wire.EvBalanceUpdated, func(ev wire.Event) {
		var upd wire.BalanceUpdate
		if err := json.Unmarshal(ev.Data, &upd); err != nil {
			return
		}
		sv := upd.StateVersion
		if sv == 0 {
			sv = ev.StateVersion
		}
		b.applyBalance(upd.Balance, sv)
	})

	return b
}

func (b *Bridge) Session() *Session { return b.session }

func (b *Bridge) Events() *Bus { return b.bus }

func (b *Bridge) Scheduler() clock.Scheduler { return b.cfg.Scheduler }

// EnsureConnected opens the socket if no healthy one exists. Concurrent
// callers share a single in-flight dial; two sockets are never opened at
// once.
func (b *Bridge) EnsureConnected(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return wire.Errf(wire.CodeInternal, false, "bridge closed")
	}
	if b.conn != nil {
		b.mu.Unlock()
		return nil
	}
	if b.connecting != nil {
		ch := b.connecting
		b.mu.Unlock()
		select {
		case <-ch:
			b.mu.Lock()
			err := b.connectErr
			b.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ch := make(chan struct{})
	b.connecting = ch
	b.mu.Unlock()

	b.session.patch(func(st *SessionState) { st.Conn = ConnConnecting })

	dialCtx, cancel := context.WithTimeout(context.Background(), b.cfg.DialTimeout)
	dialer := websocket.Dialer{HandshakeTimeout: b.cfg.DialTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, b.cfg.URL, nil)
	cancel()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		err = wire.Errf(wire.CodeDisconnected, true, "connect failed: %v", err)
	}

	var gen int
	b.mu.Lock()
	b.connectErr = err
	if err == nil {
		b.gen++
		gen = b.gen
		b.conn = conn
		// Identity must be re-proven on every physical connection.
		b.authedOnSocket = false
	}
	b.connecting = nil
	close(ch)
	b.mu.Unlock()

	if err != nil {
		b.session.patch(func(st *SessionState) {
			st.Conn = ConnClosed
			st.LastError = err.Error()
		})
		return err
	}

	log.Printf("[BRIDGE] Connected to %s", b.cfg.URL)
	b.session.patch(func(st *SessionState) {
		st.Conn = ConnOpen
		st.LastError = ""
	})
	go b.readLoop(conn, gen)
	return nil
}

// EnsureReady connects, restores the session, refreshes the balance when
// authenticated and marks the bridge ready. Concurrent callers share one
// in-flight future; a successful run is memoized for the bridge lifetime.
func (b *Bridge) EnsureReady(ctx context.Context) error {
	b.mu.Lock()
	if f := b.ready; f != nil {
		b.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &readyFuture{done: make(chan struct{})}
	b.ready = f
	b.mu.Unlock()

	err := b.becomeReady(ctx)

	b.mu.Lock()
	f.err = err
	if err != nil {
		// Failed attempts are not memoized; the next caller retries.
		b.ready = nil
	}
	close(f.done)
	b.mu.Unlock()
	return err
}

func (b *Bridge) becomeReady(ctx context.Context) error {
	if err := b.EnsureConnected(ctx); err != nil {
		return err
	}
	b.restoreSession(ctx)
	if b.session.State().Authenticated {
		b.refreshBalance(ctx)
	}
	b.session.patch(func(st *SessionState) { st.Ready = true })
	return nil
}

// Request issues an unauthenticated call and returns the response payload.
func (b *Bridge) Request(ctx context.Context, reqType string, data interface{}) (json.RawMessage, error) {
	raw, _, err := b.send(ctx, reqType, data, nil)
	return raw, err
}

// RequestAuthed issues a call that requires a proven or provable identity.
// With no session and no cached tokens it fails immediately with
// UNAUTHORIZED, without touching the network, and opens the login prompt.
func (b *Bridge) RequestAuthed(ctx context.Context, reqType string, data interface{}) (json.RawMessage, error) {
	tokens, _ := b.cfg.Creds.Load()
	if !b.session.State().Authenticated && tokens.Empty() {
		b.OpenAuthDialog(AuthTabLogin)
		return nil, wire.Errf(wire.CodeUnauthorized, false, "sign in required")
	}
	var auth *wire.Auth
	if tokens.Access != "" {
		auth = &wire.Auth{AccessToken: tokens.Access}
	}
	raw, _, err := b.send(ctx, reqType, data, auth)
	return raw, err
}

func (b *Bridge) send(ctx context.Context, reqType string, data interface{}, auth *wire.Auth) (json.RawMessage, int64, error) {
	if err := b.EnsureConnected(ctx); err != nil {
		return nil, 0, err
	}

	req, err := wire.NewRequest(reqType, uuid.NewString(), data)
	if err != nil {
		return nil, 0, wire.Errf(wire.CodeInternal, false, "encode %s: %v", reqType, err)
	}
	req.Auth = auth

	pc := &pendingCall{ch: make(chan callResult, 1)}

	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return nil, 0, wire.Errf(wire.CodeDisconnected, true, "socket not open")
	}
	// The timer handle is read by whoever wins takePending, so it must be
	// set before the entry is visible in the map.
	pc.timer = b.cfg.Scheduler.AfterFunc(b.cfg.RequestTimeout, func() {
		if p := b.takePending(req.RequestID); p != nil {
			p.ch <- callResult{err: wire.Errf(wire.CodeTimeout, true, "%s timed out", reqType)}
		}
	})
	b.pending[req.RequestID] = pc
	b.mu.Unlock()

	payload, _ := json.Marshal(req)
	b.writeMu.Lock()
	werr := conn.WriteMessage(websocket.TextMessage, payload)
	b.writeMu.Unlock()
	if werr != nil {
		if p := b.takePending(req.RequestID); p != nil {
			p.timer.Stop()
		}
		return nil, 0, wire.Errf(wire.CodeDisconnected, true, "socket write failed: %v", werr)
	}

	select {
	case res := <-pc.ch:
		if res.err != nil {
			if res.err.Code == wire.CodeUnauthorized {
				b.OpenAuthDialog(AuthTabLogin)
			}
			return nil, 0, res.err
		}
		// Any mutation that touched funds carries a balance payload; patch
		// it centrally so stores never have to.
		if len(res.data) > 0 {
			var carrier struct {
				Balance *wire.Balance `json:"balance"`
			}
			if json.Unmarshal(res.data, &carrier) == nil && carrier.Balance != nil {
				b.applyBalance(*carrier.Balance, res.sv)
			}
		}
		return res.data, res.sv, nil
	case <-ctx.Done():
		if p := b.takePending(req.RequestID); p != nil {
			p.timer.Stop()
		}
		return nil, 0, ctx.Err()
	}
}

// takePending removes and returns the entry for id, or nil if it was already
// consumed. Exactly one of {response, timeout, caller cancel} wins.
func (b *Bridge) takePending(id string) *pendingCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	pc := b.pending[id]
	if pc != nil {
		delete(b.pending, id)
	}
	return pc
}

func (b *Bridge) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.handleDisconnect(gen, err)
			return
		}

		var frame wire.Response
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("[BRIDGE] Dropping malformed frame: %v", err)
			continue
		}

		if frame.RequestID != "" {
			if pc := b.takePending(frame.RequestID); pc != nil {
				if pc.timer != nil {
					pc.timer.Stop()
				}
				if frame.OK {
					pc.ch <- callResult{data: frame.Data, sv: frame.StateVersion}
				} else {
					e := frame.Error
					if e == nil {
						e = wire.Errf(wire.CodeInternal, false, "malformed response for %s", frame.Type)
					}
					pc.ch <- callResult{err: e}
				}
				continue
			}
		}

		// No waiter: this frame is a push event named by its type.
		b.bus.Dispatch(wire.Event{
			Type:         frame.Type,
			Data:         frame.Data,
			EventID:      frame.EventID,
			StateVersion: frame.StateVersion,
		})
	}
}

func (b *Bridge) handleDisconnect(gen int, cause error) {
	b.mu.Lock()
	if gen != b.gen || b.conn == nil {
		// A fresher socket already replaced this one.
		b.mu.Unlock()
		return
	}
	conn := b.conn
	b.conn = nil
	b.authedOnSocket = false
	orphans := b.pending
	b.pending = make(map[string]*pendingCall)
	closed := b.closed
	b.mu.Unlock()

	conn.Close()

	for _, pc := range orphans {
		if pc.timer != nil {
			pc.timer.Stop()
		}
		pc.ch <- callResult{err: wire.Errf(wire.CodeDisconnected, true, "connection lost")}
	}

	log.Printf("[BRIDGE] Disconnected (%d calls aborted): %v", len(orphans), cause)
	b.session.patch(func(st *SessionState) {
		st.Conn = ConnClosed
		st.LastError = fmt.Sprintf("connection lost: %v", cause)
	})

	if !closed {
		b.scheduleReconnect()
	}
}

// scheduleReconnect arms a single reconnect timer. The handle doubles as the
// sentinel: while it is set, further disconnects do not stack timers.
func (b *Bridge) scheduleReconnect() {
	b.mu.Lock()
	if b.reconnectTimer != nil || b.closed {
		b.mu.Unlock()
		return
	}
	b.reconnectTimer = b.cfg.Scheduler.AfterFunc(b.cfg.ReconnectDelay, func() {
		b.mu.Lock()
		b.reconnectTimer = nil
		b.mu.Unlock()
		b.reconnect()
	})
	b.mu.Unlock()
}

// reconnect re-establishes the socket, then re-derives all session-dependent
// state: session restore first, balance refresh when authenticated.
func (b *Bridge) reconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.DialTimeout+b.cfg.RequestTimeout)
	defer cancel()

	if err := b.EnsureConnected(ctx); err != nil {
		log.Printf("[BRIDGE] Reconnect failed: %v", err)
		b.scheduleReconnect()
		return
	}
	b.restoreSession(ctx)
	if b.session.State().Authenticated {
		b.refreshBalance(ctx)
	}
}

// restoreSession proves cached tokens against the current connection: probe
// with the access token, fall back to the refresh exchange, clear everything
// if both fail.
func (b *Bridge) restoreSession(ctx context.Context) {
	tokens, err := b.cfg.Creds.Load()
	if err != nil || tokens.Empty() {
		b.dropIdentity()
		return
	}

	if tokens.Access != "" {
		id, err := b.probeIdentity(ctx, tokens.Access)
		if err == nil {
			b.adoptIdentity(id)
			return
		}
	}

	if tokens.Refresh != "" {
		raw, _, err := b.send(ctx, wire.ReqAuthRefresh, map[string]string{"refreshToken": tokens.Refresh}, nil)
		if err == nil {
			var id wire.Identity
			if json.Unmarshal(raw, &id) == nil && id.AccessToken != "" {
				b.cfg.Creds.Save(creds.Tokens{Access: id.AccessToken, Refresh: id.RefreshToken})
				b.adoptIdentity(id)
				return
			}
		}
	}

	log.Printf("[BRIDGE] Session restore failed, clearing tokens")
	b.cfg.Creds.Clear()
	b.dropIdentity()
}

func (b *Bridge) probeIdentity(ctx context.Context, accessToken string) (wire.Identity, error) {
	raw, _, err := b.send(ctx, wire.ReqAuthMe, nil, &wire.Auth{AccessToken: accessToken})
	if err != nil {
		return wire.Identity{}, err
	}
	var id wire.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return wire.Identity{}, wire.Errf(wire.CodeInternal, false, "decode identity: %v", err)
	}
	return id, nil
}

func (b *Bridge) adoptIdentity(id wire.Identity) {
	b.mu.Lock()
	b.authedOnSocket = true
	b.mu.Unlock()

	b.session.patch(func(st *SessionState) {
		st.Authenticated = true
		st.UserID = id.UserID
		st.Name = id.Name
	})
	b.applyBalance(id.Balance, 0)
}

func (b *Bridge) dropIdentity() {
	b.mu.Lock()
	b.authedOnSocket = false
	b.mu.Unlock()

	b.session.patch(func(st *SessionState) {
		st.Authenticated = false
		st.UserID = ""
		st.Name = ""
	})
}

func (b *Bridge) refreshBalance(ctx context.Context) {
	raw, sv, err := b.send(ctx, wire.ReqBalanceGet, nil, b.currentAuth())
	if err != nil {
		log.Printf("[BRIDGE] Balance refresh failed: %v", err)
		return
	}
	var bal wire.Balance
	if json.Unmarshal(raw, &bal) != nil {
		return
	}
	b.applyBalance(bal, sv)
}

func (b *Bridge) currentAuth() *wire.Auth {
	tokens, _ := b.cfg.Creds.Load()
	if tokens.Access == "" {
		return nil
	}
	return &wire.Auth{AccessToken: tokens.Access}
}

// applyBalance normalizes amounts to fixed 2-decimal strings and patches the
// session. Pushes carrying a stateVersion at or below the current one are
// stale and dropped. The patch itself is a no-op when nothing differs.
func (b *Bridge) applyBalance(bal wire.Balance, sv int64) {
	main := normalizeAmount(bal.Main)
	bonus := normalizeAmount(bal.Bonus)

	b.session.patch(func(st *SessionState) {
		if sv != 0 && sv <= st.StateVersion {
			return
		}
		if sv != 0 {
			st.StateVersion = sv
		}
		st.BalanceMain = main
		st.BalanceBonus = bonus
	})
}

func normalizeAmount(s string) string {
	if s == "" {
		return "0.00"
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "0.00"
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// Login exchanges credentials for a token pair and adopts the identity.
func (b *Bridge) Login(ctx context.Context, name, password string) error {
	return b.authenticate(ctx, wire.ReqAuthLogin, name, password)
}

// Register creates an account and adopts the identity.
func (b *Bridge) Register(ctx context.Context, name, password string) error {
	return b.authenticate(ctx, wire.ReqAuthRegister, name, password)
}

func (b *Bridge) authenticate(ctx context.Context, reqType, name, password string) error {
	raw, _, err := b.send(ctx, reqType, map[string]string{"name": name, "password": password}, nil)
	if err != nil {
		return err
	}
	var id wire.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return wire.Errf(wire.CodeInternal, false, "decode identity: %v", err)
	}
	if err := b.cfg.Creds.Save(creds.Tokens{Access: id.AccessToken, Refresh: id.RefreshToken}); err != nil {
		log.Printf("[BRIDGE] Saving tokens failed: %v", err)
	}
	b.adoptIdentity(id)
	b.session.patch(func(st *SessionState) { st.AuthDialogOpen = false })
	return nil
}

// Logout tells the server best-effort, then clears tokens and resets all
// session-derived state.
func (b *Bridge) Logout(ctx context.Context) {
	if auth := b.currentAuth(); auth != nil {
		b.send(ctx, wire.ReqAuthLogout, nil, auth)
	}
	b.cfg.Creds.Clear()
	b.dropIdentity()
	b.session.patch(func(st *SessionState) {
		st.BalanceMain = "0.00"
		st.BalanceBonus = "0.00"
	})
}

func (b *Bridge) OpenAuthDialog(tab string) {
	b.session.patch(func(st *SessionState) {
		st.AuthDialogOpen = true
		st.AuthDialogTab = tab
	})
}

func (b *Bridge) CloseAuthDialog() {
	b.session.patch(func(st *SessionState) { st.AuthDialogOpen = false })
}

// Close tears the bridge down; no reconnect is attempted afterwards.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	if b.reconnectTimer != nil {
		b.reconnectTimer.Stop()
		b.reconnectTimer = nil
	}
	conn := b.conn
	b.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
