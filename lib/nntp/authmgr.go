package nntp

import (
	"sync"

	. "nread/lib/logx"
)

// AsyncPrompter gets poked when some session needs credentials nobody
// has cached. The UI answers later via Resolve or Reject; it is only
// poked once per key however many sessions pile up behind it.
type AsyncPrompter interface {
	BeginNNTPPrompt(key CredKey)
}

// AuthMgr is a CredentialSource with a cache and prompt coalescing.
// Safe for use by multiple sessions of the same server.
type AuthMgr struct {
	mu      sync.Mutex
	log     Logger
	prompt  AsyncPrompter
	cache   map[CredKey]Credentials
	waiting map[CredKey][]*Session
}

func NewAuthMgr(prompt AsyncPrompter, lx LoggerX) *AuthMgr {
	if lx == nil {
		lx = NilLogger{}
	}
	return &AuthMgr{
		log:     NewLogToX(lx, "authmgr"),
		prompt:  prompt,
		cache:   make(map[CredKey]Credentials),
		waiting: make(map[CredKey][]*Session),
	}
}

// Preload seeds the cache, typically from config.
func (m *AuthMgr) Preload(key CredKey, c Credentials) {
	m.mu.Lock()
	m.cache[key] = c
	m.mu.Unlock()
}

func (m *AuthMgr) LookupNNTPCreds(s *Session, key CredKey) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.cache[key]; ok {
		return c, nil
	}
	if m.prompt == nil {
		return Credentials{}, ErrAuthCancelled
	}
	first := len(m.waiting[key]) == 0
	m.waiting[key] = append(m.waiting[key], s)
	if first {
		m.log.LogPrintf(DEBUG, "prompting for %v", key)
		m.prompt.BeginNNTPPrompt(key)
	}
	return Credentials{}, ErrPromptPending
}

func (m *AuthMgr) ForgetNNTPCreds(key CredKey) {
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
}

// Resolve delivers prompt results to every waiting session. The owner
// of each session must Advance it again afterwards.
func (m *AuthMgr) Resolve(key CredKey, c Credentials) []*Session {
	m.mu.Lock()
	m.cache[key] = c
	ws := m.waiting[key]
	delete(m.waiting, key)
	m.mu.Unlock()

	for _, s := range ws {
		s.SupplyCredentials(c)
	}
	return ws
}

// Reject aborts every waiting session's auth attempt.
func (m *AuthMgr) Reject(key CredKey) []*Session {
	m.mu.Lock()
	ws := m.waiting[key]
	delete(m.waiting, key)
	m.mu.Unlock()

	for _, s := range ws {
		s.AuthAborted()
	}
	return ws
}

// Withdraw removes a dying session from any wait lists so Resolve
// never touches it again.
func (m *AuthMgr) Withdraw(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ws := range m.waiting {
		for i, w := range ws {
			if w == s {
				m.waiting[key] = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		if len(m.waiting[key]) == 0 {
			delete(m.waiting, key)
		}
	}
}
