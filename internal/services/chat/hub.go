package chat

import "sync"

// hub holds at most one session per user on this instance.
type hub struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func newHub() *hub {
	return &hub{sessions: make(map[int64]*Session)}
}

// register installs s and returns the session it replaced, if any.
func (h *hub) register(s *Session) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.sessions[s.userID]
	h.sessions[s.userID] = s
	return prev
}

func (h *hub) unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.userID] == s {
		delete(h.sessions, s.userID)
	}
}

func (h *hub) get(userID int64) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[userID]
	return s, ok
}

func (h *hub) size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *hub) closeAll() {
	h.mu.RLock()
	all := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		all = append(all, s)
	}
	h.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}
}
