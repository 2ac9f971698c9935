package chatsession

import (
	"sync"
	"time"

	"studyhall/chat-api/internal/config"
	"studyhall/chat-api/internal/sync/querycache"
)

// DefaultSessionKey is the stable key shared by the new-chat and
// existing-chat views of one user.
const DefaultSessionKey = "primary"

// Manager owns the live sessions, one per (owner, session key).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store     ConversationStore
	usage     UsageRecorder
	completer Completer
	cache     *querycache.Cache
	profiles  *config.PromptProfiles
	model     string
}

func NewManager(store ConversationStore, usage UsageRecorder, completer Completer, cache *querycache.Cache, profiles *config.PromptProfiles, model string) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		store:     store,
		usage:     usage,
		completer: completer,
		cache:     cache,
		profiles:  profiles,
		model:     model,
	}
}

// Get returns the owner's session for key, creating it on first use. The
// profile applies only at creation; an existing session keeps its own.
func (m *Manager) Get(ownerID, key, profileName string) *Session {
	if key == "" {
		key = DefaultSessionKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := ownerID + "/" + key
	if session, ok := m.sessions[id]; ok {
		return session
	}

	session := NewSession(key, ownerID, "", m.store, m.usage, m.completer, m.cache, m.profiles.Resolve(profileName), m.model)
	m.sessions[id] = session
	return session
}

// ReleaseConversation rebinds any of the owner's sessions pointing at the
// conversation back to the new-chat state. Called when the conversation is
// deleted, so the active view never keeps streaming into a dead id.
func (m *Manager) ReleaseConversation(ownerID, conversationID string) int {
	if conversationID == "" {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for _, session := range m.sessions {
		if session.ownerID != ownerID {
			continue
		}
		if session.ConversationID() == conversationID {
			session.SwitchConversation("")
			released++
		}
	}
	return released
}

// Reap drops sessions idle longer than maxIdle and reports how many.
// In-flight sessions are never reaped.
func (m *Manager) Reap(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxIdle)
	for id, session := range m.sessions {
		state := session.State()
		if state == StateAwaiting || state == StateStreaming {
			continue
		}
		if session.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
