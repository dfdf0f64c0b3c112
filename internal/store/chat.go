package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"punter/internal/wire"
)

const CHAT_HISTORY_MAX = 60

// ChatTone lets win/loss announcements render differently from plain talk.
type ChatTone string

const (
	ToneDefault ChatTone = "default"
	ToneWin     ChatTone = "win"
	ToneLoss    ChatTone = "loss"
)

type ChatMessage struct {
	ID     string   `json:"id"`
	UserID string   `json:"userId"`
	Name   string   `json:"name"`
	Avatar string   `json:"avatar,omitempty"`
	Text   string   `json:"text"`
	Tone   ChatTone `json:"tone,omitempty"`
	Ts     int64    `json:"ts"`

	// Rendered clock time, derived from Ts once on arrival.
	Time string `json:"-"`
}

// ChatUserCard is the profile popover payload for a clicked author.
type ChatUserCard struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Joined   string `json:"joined,omitempty"`
	Wagered  string `json:"wagered,omitempty"`
	BestWin  string `json:"bestWin,omitempty"`
	GamesWon int    `json:"gamesWon"`
}

type ChatState struct {
	Messages []ChatMessage
	Online   int
	Card     *ChatUserCard
	Status   string
}

// Chat keeps a bounded message feed deduplicated by message id.
type Chat struct {
	b      Backend
	toasts *Toasts
	st     *snapshot[ChatState]
	once   sync.Once

	mu    sync.Mutex
	known map[string]bool
}

func NewChat(b Backend, toasts *Toasts) *Chat {
	return &Chat{
		b:      b,
		toasts: toasts,
		st:     newSnapshot(ChatState{}),
		known:  make(map[string]bool),
	}
}

func (c *Chat) State() ChatState { return c.st.get() }

func (c *Chat) Subscribe(fn func(ChatState)) func() {
	c.once.Do(c.activate)
	return c.st.subscribe(fn)
}

func (c *Chat) activate() {
	bus := c.b.Events()
	bus.Subscribe(wire.EvChatMessage, c.onMessage)
	bus.Subscribe(wire.EvChatOnline, c.onOnline)
	bus.Subscribe(wire.EvChatDeleted, c.onDeleted)
	bus.Subscribe(wire.EvChatCleared, c.onCleared)

	go func() {
		ctx := context.Background()
		if err := c.b.EnsureReady(ctx); err != nil {
			return
		}
		if _, err := c.b.Request(ctx, wire.ReqChatSub, nil); err != nil {
			return
		}

		if raw, err := c.b.Request(ctx, wire.ReqChatHistory, nil); err == nil {
			var hist struct {
				Messages []ChatMessage `json:"messages"`
			}
			if json.Unmarshal(raw, &hist) == nil {
				c.absorb(hist.Messages)
			}
		}

		if raw, err := c.b.Request(ctx, wire.ReqChatOnline, nil); err == nil {
			var online struct {
				Count int `json:"count"`
			}
			if json.Unmarshal(raw, &online) == nil {
				c.st.patch(func(st *ChatState) { st.Online = online.Count })
			}
		}
	}()
}

// absorb appends history messages oldest-first, skipping ids already seen.
func (c *Chat) absorb(msgs []ChatMessage) {
	fresh := make([]ChatMessage, 0, len(msgs))
	c.mu.Lock()
	for _, m := range msgs {
		if m.ID == "" || c.known[m.ID] {
			continue
		}
		c.known[m.ID] = true
		m.Time = renderClock(m.Ts)
		if m.Tone == "" {
			m.Tone = ToneDefault
		}
		fresh = append(fresh, m)
	}
	c.mu.Unlock()
	if len(fresh) == 0 {
		return
	}
	c.st.patch(func(st *ChatState) {
		merged := append(append([]ChatMessage(nil), st.Messages...), fresh...)
		if len(merged) > CHAT_HISTORY_MAX {
			merged = merged[len(merged)-CHAT_HISTORY_MAX:]
		}
		st.Messages = merged
	})
}

func (c *Chat) onMessage(ev wire.Event) {
	var msg ChatMessage
	if json.Unmarshal(ev.Data, &msg) != nil || msg.ID == "" {
		return
	}
	c.absorb([]ChatMessage{msg})
}

func (c *Chat) onOnline(ev wire.Event) {
	var online struct {
		Count int `json:"count"`
	}
	if json.Unmarshal(ev.Data, &online) != nil {
		return
	}
	c.st.patch(func(st *ChatState) { st.Online = online.Count })
}

func (c *Chat) onDeleted(ev wire.Event) {
	var del struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(ev.Data, &del) != nil || del.ID == "" {
		return
	}
	c.st.patch(func(st *ChatState) {
		kept := make([]ChatMessage, 0, len(st.Messages))
		for _, m := range st.Messages {
			if m.ID != del.ID {
				kept = append(kept, m)
			}
		}
		st.Messages = kept
	})
}

func (c *Chat) onCleared(ev wire.Event) {
	c.mu.Lock()
	c.known = make(map[string]bool)
	c.mu.Unlock()
	c.st.patch(func(st *ChatState) { st.Messages = nil })
}

// Send posts a message; moderation rejections surface as status + toast.
func (c *Chat) Send(ctx context.Context, text string) error {
	if err := c.b.EnsureReady(ctx); err != nil {
		return err
	}
	_, err := c.b.RequestAuthed(ctx, wire.ReqChatSend, map[string]string{"text": text})
	if err != nil {
		status, ignore := actionStatus(err)
		if !ignore {
			c.st.patch(func(st *ChatState) { st.Status = status })
			if c.toasts != nil {
				c.toasts.Push(ToastError, status)
			}
		}
		return err
	}
	c.st.patch(func(st *ChatState) { st.Status = "" })
	return nil
}

// UserCard fetches and opens the profile popover for an author.
func (c *Chat) UserCard(ctx context.Context, userID string) error {
	if err := c.b.EnsureReady(ctx); err != nil {
		return err
	}
	raw, err := c.b.Request(ctx, wire.ReqChatUserCard, map[string]string{"userId": userID})
	if err != nil {
		return err
	}
	var card ChatUserCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return err
	}
	c.st.patch(func(st *ChatState) { st.Card = &card })
	return nil
}

func (c *Chat) CloseUserCard() {
	c.st.patch(func(st *ChatState) { st.Card = nil })
}

func renderClock(tsMillis int64) string {
	if tsMillis == 0 {
		return ""
	}
	return time.UnixMilli(tsMillis).Format("15:04")
}
