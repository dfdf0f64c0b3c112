package mock

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// User is one registered account.
type User struct {
	ID       string
	Name     string
	Avatar   string
	password string
}

// Registry holds accounts and the token maps. Access tokens prove identity on
// requests; refresh tokens mint replacement pairs and rotate on use.
type Registry struct {
	mu      sync.Mutex
	byName  map[string]*User
	byID    map[string]*User
	access  map[string]string // token -> userID
	refresh map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*User),
		byID:    make(map[string]*User),
		access:  make(map[string]string),
		refresh: make(map[string]string),
	}
}

func (r *Registry) Register(name, password string) (*User, string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" || password == "" {
		return nil, "", "", fmt.Errorf("name and password required")
	}
	if r.byName[name] != nil {
		return nil, "", "", fmt.Errorf("name %q is taken", name)
	}
	user := &User{
		ID:       uuid.NewString(),
		Name:     name,
		Avatar:   fmt.Sprintf("https://avatars.test/%s.png", name),
		password: password,
	}
	r.byName[name] = user
	r.byID[user.ID] = user
	access, refresh := r.mintLocked(user.ID)
	return user, access, refresh, nil
}

func (r *Registry) Login(name, password string) (*User, string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.byName[name]
	if user == nil || user.password != password {
		return nil, "", "", fmt.Errorf("invalid name or password")
	}
	access, refresh := r.mintLocked(user.ID)
	return user, access, refresh, nil
}

// Authenticate resolves an access token to its user.
func (r *Registry) Authenticate(accessToken string) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.access[accessToken]
	if !ok {
		return nil
	}
	return r.byID[userID]
}

// Refresh exchanges a refresh token for a fresh pair. The used token is
// invalidated even on the happy path.
func (r *Registry) Refresh(refreshToken string) (*User, string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.refresh[refreshToken]
	if !ok {
		return nil, "", "", fmt.Errorf("unknown refresh token")
	}
	delete(r.refresh, refreshToken)
	access, refresh := r.mintLocked(userID)
	return r.byID[userID], access, refresh, nil
}

// Logout invalidates the access token.
func (r *Registry) Logout(accessToken string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.access, accessToken)
}

func (r *Registry) UserByID(userID string) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[userID]
}

func (r *Registry) mintLocked(userID string) (string, string) {
	access := uuid.NewString()
	refresh := uuid.NewString()
	r.access[access] = userID
	r.refresh[refresh] = userID
	return access, refresh
}
