package bridge

import "sync"

// ConnPhase is the connection lifecycle of the single socket.
type ConnPhase string

const (
	ConnIdle       ConnPhase = "idle"
	ConnConnecting ConnPhase = "connecting"
	ConnOpen       ConnPhase = "open"
	ConnClosed     ConnPhase = "closed"
)

// Auth dialog tabs.
const (
	AuthTabLogin    = "login"
	AuthTabRegister = "register"
)

// SessionState is the process-wide connection/auth/balance blob. It is a
// plain comparable value so the patch primitive can detect no-op updates with
// a single comparison.
type SessionState struct {
	Conn           ConnPhase
	Ready          bool
	Authenticated  bool
	UserID         string
	Name           string
	BalanceMain    string
	BalanceBonus   string
	StateVersion   int64
	LastError      string
	AuthDialogOpen bool
	AuthDialogTab  string
}

// Session owns the state blob. Mutation happens only through patch; readers
// get value snapshots.
type Session struct {
	mu      sync.Mutex
	state   SessionState
	nextSub int
	subs    map[int]func(SessionState)
}

func NewSession() *Session {
	return &Session{
		state: SessionState{
			Conn:          ConnIdle,
			BalanceMain:   "0.00",
			BalanceBonus:  "0.00",
			AuthDialogTab: AuthTabLogin,
		},
		subs: make(map[int]func(SessionState)),
	}
}

// State returns the current snapshot.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener and returns an unsubscribe func. The
// listener fires only when a patch actually changed at least one field.
func (s *Session) Subscribe(fn func(SessionState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// patch applies mut to a copy of the state. If no field changed the patch is
// a no-op and listeners do not fire.
func (s *Session) patch(mut func(*SessionState)) bool {
	s.mu.Lock()
	next := s.state
	mut(&next)
	if next == s.state {
		s.mu.Unlock()
		return false
	}
	s.state = next
	listeners := make([]func(SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return true
}
