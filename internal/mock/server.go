package mock

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"punter/internal/wire"
)

// Server is the development platform: every feature the client speaks to,
// behind one websocket endpoint, with zero external infrastructure.
type Server struct {
	*fiber.App

	hub      *Hub
	registry *Registry
	wallets  *Wallets
	crash    *CrashGame
	dice     *DiceEngine
	chat     *ChatRoom
}

func NewServer() *Server {
	hub := NewHub()
	wallets := NewWallets()

	s := &Server{
		App: fiber.New(fiber.Config{
			ServerHeader:  "punter-mock",
			AppName:       "punter-mock",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),
		hub:      hub,
		registry: NewRegistry(),
		wallets:  wallets,
		crash:    NewCrashGame(hub, wallets),
		dice:     NewDiceEngine(wallets),
		chat:     NewChatRoom(hub),
	}

	s.App.Use(recover.New())
	s.App.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Accept,Authorization,Content-Type",
		MaxAge:       300,
	}))

	s.App.Get("/health", s.healthHandler)
	s.App.Get("/ws", websocket.New(s.wsHandler))

	go hub.Run()
	s.crash.Start()
	log.Println("[MOCK] Hub and crash loop started")

	return s
}

func (s *Server) Shutdown() error {
	log.Println("[MOCK] Shutting down...")
	s.crash.Stop()
	return s.App.Shutdown()
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":            "running",
		"connected_clients": s.hub.ClientCount(),
	})
}

func (s *Server) wsHandler(conn *websocket.Conn) {
	client := s.hub.RegisterClient(conn)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			s.hub.UnregisterClient(client)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req wire.Request
		if err := json.Unmarshal(message, &req); err != nil || req.Type == "" {
			log.Printf("[MOCK] Dropping malformed frame: %v", err)
			continue
		}

		data, sv, werr := s.handle(client, req)
		resp := wire.Response{
			Type:         req.Type,
			RequestID:    req.RequestID,
			ServerTs:     time.Now().UnixMilli(),
			StateVersion: sv,
		}
		if werr != nil {
			resp.Error = werr
		} else {
			resp.OK = true
			resp.Data = data
		}
		client.Reply(resp)
	}
}

// handle routes one envelope. Return order: payload, state version, error.
func (s *Server) handle(client *Client, req wire.Request) (json.RawMessage, int64, *wire.Error) {
	switch req.Type {
	case wire.ReqAuthRegister, wire.ReqAuthLogin:
		return s.handleAuth(client, req)
	case wire.ReqAuthRefresh:
		return s.handleRefresh(client, req)
	case wire.ReqAuthMe:
		user, werr := s.authUser(req)
		if werr != nil {
			return nil, 0, werr
		}
		client.setUser(user.ID)
		return s.identity(user, "", ""), 0, nil
	case wire.ReqAuthLogout:
		if req.Auth != nil {
			s.registry.Logout(req.Auth.AccessToken)
		}
		return marshal(map[string]bool{"ok": true}), 0, nil

	case wire.ReqBalanceGet:
		user, werr := s.authUser(req)
		if werr != nil {
			return nil, 0, werr
		}
		bal, sv := s.wallets.Balance(user.ID)
		return marshal(bal), sv, nil

	case wire.ReqDiceSub:
		return marshal(map[string]string{}), 0, nil
	case wire.ReqDiceSnapshot:
		return marshal(s.dice.Snapshot()), 0, nil
	case wire.ReqDiceBet:
		user, werr := s.authUser(req)
		if werr != nil {
			return nil, 0, werr
		}
		var body struct {
			Amount    string  `json:"amount"`
			Chance    float64 `json:"chance"`
			Direction string  `json:"direction"`
		}
		if err := json.Unmarshal(req.Data, &body); err != nil {
			return nil, 0, wire.Errf(wire.CodeInternal, false, "bad dice.bet payload")
		}
		res, sv, werr := s.dice.Roll(user, body.Amount, body.Chance, body.Direction)
		if werr != nil {
			return nil, 0, werr
		}
		return marshal(res), sv, nil

	case wire.ReqCrashSub:
		return marshal(s.crash.Snapshot()), 0, nil
	case wire.ReqCrashBet:
		user, werr := s.authUser(req)
		if werr != nil {
			return nil, 0, werr
		}
		var body struct {
			Amount      string  `json:"amount"`
			AutoCashout float64 `json:"autoCashout"`
		}
		if err := json.Unmarshal(req.Data, &body); err != nil {
			return nil, 0, wire.Errf(wire.CodeInternal, false, "bad crash.bet payload")
		}
		res, sv, werr := s.crash.Bet(user, body.Amount, body.AutoCashout)
		if werr != nil {
			return nil, 0, werr
		}
		return marshal(res), sv, nil
	case wire.ReqCrashCashout:
		user, werr := s.authUser(req)
		if werr != nil {
			return nil, 0, werr
		}
		res, sv, werr := s.crash.Cashout(user.ID)
		if werr != nil {
			return nil, 0, werr
		}
		return marshal(res), sv, nil

	case wire.ReqChatSub:
		return marshal(map[string]string{}), 0, nil
	case wire.ReqChatHistory:
		return marshal(s.chat.History()), 0, nil
	case wire.ReqChatOnline:
		return marshal(s.chat.Online()), 0, nil
	case wire.ReqChatSend:
		user, werr := s.authUser(req)
		if werr != nil {
			return nil, 0, werr
		}
		var body struct {
			Text string `json:"text"`
		}
		json.Unmarshal(req.Data, &body)
		res, werr := s.chat.Post(user, body.Text)
		if werr != nil {
			return nil, 0, werr
		}
		return marshal(res), 0, nil
	case wire.ReqChatUserCard:
		var body struct {
			UserID string `json:"userId"`
		}
		json.Unmarshal(req.Data, &body)
		res, werr := s.chat.UserCard(s.registry, body.UserID)
		if werr != nil {
			return nil, 0, werr
		}
		return marshal(res), 0, nil

	// TODO: simulate wheel/jackpot/battle/coinflip round loops. For now the
	// client can attach and gets an empty snapshot with limits.
	case wire.ReqWheelSub, wire.ReqBattleSub, wire.ReqCoinflipSub, wire.ReqJackpotRoomSub:
		return marshal(map[string]string{
			"minBet": CRASH_MIN_BET,
			"maxBet": CRASH_MAX_BET,
		}), 0, nil

	default:
		return nil, 0, wire.Errf(wire.CodeInternal, false, "unknown request type %q", req.Type)
	}
}

func (s *Server) handleAuth(client *Client, req wire.Request) (json.RawMessage, int64, *wire.Error) {
	var body struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(req.Data, &body); err != nil {
		return nil, 0, wire.Errf(wire.CodeInternal, false, "bad auth payload")
	}

	var user *User
	var access, refresh string
	var err error
	if req.Type == wire.ReqAuthRegister {
		user, access, refresh, err = s.registry.Register(body.Name, body.Password)
	} else {
		user, access, refresh, err = s.registry.Login(body.Name, body.Password)
	}
	if err != nil {
		return nil, 0, wire.Errf(wire.CodeUnauthorized, false, "%v", err)
	}

	client.setUser(user.ID)
	log.Printf("[MOCK] %s authenticated as %s", req.Type, user.Name)
	return s.identity(user, access, refresh), 0, nil
}

func (s *Server) handleRefresh(client *Client, req wire.Request) (json.RawMessage, int64, *wire.Error) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(req.Data, &body); err != nil {
		return nil, 0, wire.Errf(wire.CodeInternal, false, "bad refresh payload")
	}
	user, access, refresh, err := s.registry.Refresh(body.RefreshToken)
	if err != nil {
		return nil, 0, wire.Errf(wire.CodeUnauthorized, false, "%v", err)
	}
	client.setUser(user.ID)
	return s.identity(user, access, refresh), 0, nil
}

// authUser resolves the envelope's access token, failing UNAUTHORIZED when it
// is absent or unknown.
func (s *Server) authUser(req wire.Request) (*User, *wire.Error) {
	if req.Auth == nil || req.Auth.AccessToken == "" {
		return nil, wire.Errf(wire.CodeUnauthorized, false, "sign in required")
	}
	user := s.registry.Authenticate(req.Auth.AccessToken)
	if user == nil {
		return nil, wire.Errf(wire.CodeUnauthorized, false, "token expired")
	}
	return user, nil
}

func (s *Server) identity(user *User, access, refresh string) json.RawMessage {
	bal, _ := s.wallets.Balance(user.ID)
	return marshal(wire.Identity{
		UserID:       user.ID,
		Name:         user.Name,
		Avatar:       user.Avatar,
		Balance:      bal,
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func marshal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("[MOCK] Marshal error: %v", err)
		return json.RawMessage(`{}`)
	}
	return raw
}
