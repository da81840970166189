package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Exchange is one completed user/assistant turn.
type Exchange struct {
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is one conversation's retained history.
type Session struct {
	ID        string     `json:"id"`
	Exchanges []Exchange `json:"exchanges"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Manager holds in-memory sessions. History is capped at maxHistory
// exchanges per session; older exchanges are dropped.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	maxHistory int
}

// NewManager creates a session manager keeping maxHistory exchanges per
// session.
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 2
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		maxHistory: maxHistory,
	}
}

// Create starts a new session and returns its id.
func (m *Manager) Create() string {
	id := uuid.NewString()
	now := time.Now()

	m.mu.Lock()
	m.sessions[id] = &Session{ID: id, CreatedAt: now, UpdatedAt: now}
	m.mu.Unlock()

	return id
}

// AddExchange records one completed turn, trimming history beyond the
// cap. Unknown session ids are created implicitly, so a client holding a
// stale id after a server restart keeps working.
func (m *Manager) AddExchange(id, userMessage, assistantMessage string) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		sess = &Session{ID: id, CreatedAt: now}
		m.sessions[id] = sess
	}

	sess.Exchanges = append(sess.Exchanges, Exchange{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		CreatedAt:        now,
	})
	if len(sess.Exchanges) > m.maxHistory {
		sess.Exchanges = sess.Exchanges[len(sess.Exchanges)-m.maxHistory:]
	}
	sess.UpdatedAt = now
}

// History renders a session's retained exchanges as alternating
// "User:"/"Assistant:" lines for the system prompt. Unknown ids yield "".
func (m *Manager) History(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok || len(sess.Exchanges) == 0 {
		return ""
	}

	var lines []string
	for _, ex := range sess.Exchanges {
		lines = append(lines, fmt.Sprintf("User: %s", ex.UserMessage))
		lines = append(lines, fmt.Sprintf("Assistant: %s", ex.AssistantMessage))
	}
	return strings.Join(lines, "\n")
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
