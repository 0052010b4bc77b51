package stubserver

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// SessionManager tracks the active tutor socket for each user. A user has at
// most one; a newer connection replaces the older one.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
	logger *slog.Logger
}

// NewSessionManager creates an empty session manager.
func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		active: make(map[string]*websocket.Conn),
		logger: logger,
	}
}

// Active returns the user's connection, or nil.
func (m *SessionManager) Active(userID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[userID]
}

// Count returns the number of connected users.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register records conn as the user's connection, closing any previous one.
// The close handshake runs in the background so a slow peer cannot hold the
// registry lock.
func (m *SessionManager) Register(userID string, conn *websocket.Conn) {
	m.mu.Lock()
	existing, ok := m.active[userID]
	m.active[userID] = conn
	m.mu.Unlock()

	if ok && existing != conn {
		go func() { _ = existing.Close(websocket.StatusNormalClosure, "session replaced") }()
	}
	m.logger.Info("Tutor session registered", "user_id", userID, "replaced", ok)
}

// Unregister removes conn if it is still the user's current connection.
func (m *SessionManager) Unregister(userID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[userID]; ok && current == conn {
		delete(m.active, userID)
		m.logger.Info("Tutor session unregistered", "user_id", userID)
	}
}

// CloseAll terminates every connection, used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.active))
	for userID, conn := range m.active {
		conns = append(conns, conn)
		delete(m.active, userID)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}()
	}
	wg.Wait()
}
