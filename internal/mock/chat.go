package mock

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"punter/internal/wire"
)

const (
	CHAT_BACKLOG     = 100
	CHAT_MAX_MESSAGE = 300
)

type chatMessage struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Text   string `json:"text"`
	Tone   string `json:"tone,omitempty"`
	Ts     int64  `json:"ts"`
}

// ChatRoom keeps a bounded backlog and broadcasts each post.
type ChatRoom struct {
	hub *Hub

	mu      sync.Mutex
	backlog []chatMessage
}

func NewChatRoom(hub *Hub) *ChatRoom {
	room := &ChatRoom{hub: hub}
	hub.OnCountChange(func(n int) {
		hub.Broadcast(wire.EvChatOnline, map[string]interface{}{"count": n})
	})
	return room
}

// History answers chat.history with the backlog oldest-first.
func (r *ChatRoom) History() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]chatMessage, len(r.backlog))
	copy(msgs, r.backlog)
	return map[string]interface{}{"messages": msgs}
}

func (r *ChatRoom) Online() map[string]interface{} {
	return map[string]interface{}{"count": r.hub.ClientCount()}
}

// Post validates, stores and broadcasts one message.
func (r *ChatRoom) Post(user *User, text string) (map[string]interface{}, *wire.Error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, wire.Errf("EMPTY_MESSAGE", false, "message is empty")
	}
	if len(text) > CHAT_MAX_MESSAGE {
		return nil, wire.Errf("MESSAGE_TOO_LONG", false, "message exceeds %d characters", CHAT_MAX_MESSAGE)
	}

	msg := chatMessage{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Name:   user.Name,
		Avatar: user.Avatar,
		Text:   text,
		Ts:     time.Now().UnixMilli(),
	}

	r.mu.Lock()
	r.backlog = append(r.backlog, msg)
	if len(r.backlog) > CHAT_BACKLOG {
		r.backlog = r.backlog[len(r.backlog)-CHAT_BACKLOG:]
	}
	r.mu.Unlock()

	r.hub.Broadcast(wire.EvChatMessage, msg)
	return map[string]interface{}{"id": msg.ID}, nil
}

// UserCard answers the profile popover request.
func (r *ChatRoom) UserCard(registry *Registry, userID string) (map[string]interface{}, *wire.Error) {
	user := registry.UserByID(userID)
	if user == nil {
		return nil, wire.Errf("UNKNOWN_USER", false, "unknown user")
	}
	return map[string]interface{}{
		"userId": user.ID,
		"name":   user.Name,
		"avatar": user.Avatar,
	}, nil
}
