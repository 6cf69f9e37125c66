package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/deskfront/messaging-core/internal/composer"
	"github.com/deskfront/messaging-core/internal/directory"
	"github.com/deskfront/messaging-core/internal/live"
	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/internal/remote"
	"github.com/deskfront/messaging-core/internal/store"
	"github.com/deskfront/messaging-core/pkg/logger"
)

// Session bundles the per-user state: the thread store, the orchestrator
// writing to it, and the push channel it owns. The channel is created at
// session start and destroyed at sign-out, never reached through globals.
type Session struct {
	Chat *ChatService
	Live *live.Channel

	store *store.Store
}

// SessionManager creates and tears down sessions. One session exists per
// requester; repeat lookups return the same session.
type SessionManager struct {
	threads     remote.ThreadAPI
	directory   *directory.Directory
	liveCfg     live.Config
	transcriber *composer.Transcriber
	logger      *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a session manager over shared collaborators.
func NewSessionManager(
	threads remote.ThreadAPI,
	dir *directory.Directory,
	liveCfg live.Config,
	tr *composer.Transcriber,
	log *logger.Logger,
) *SessionManager {
	return &SessionManager{
		threads:     threads,
		directory:   dir,
		liveCfg:     liveCfg,
		transcriber: tr,
		logger:      log,
		sessions:    make(map[string]*Session),
	}
}

// Session returns the requester's session, creating it on first use. The
// push channel connects on creation; a connection failure does not fail
// the session, since request/response operations work without it.
func (m *SessionManager) Session(ctx context.Context, requester model.Participant) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[requester.ID]; ok {
		return sess
	}

	st := store.New(requester.ID, m.logger)
	channel := live.NewChannel(m.liveCfg, st, requester.ID, m.logger)
	chat := NewChatService(m.threads, m.directory, st, requester, nil, m.transcriber, m.logger)

	if err := channel.Connect(ctx); err != nil {
		m.logger.Warn("live channel unavailable for session",
			zap.String("user_id", requester.ID), zap.Error(err))
	}

	sess := &Session{Chat: chat, Live: channel, store: st}
	m.sessions[requester.ID] = sess
	return sess
}

// SignOut destroys a session: the push channel is released before the
// store is cleared and the session dropped. No-op for unknown users.
func (m *SessionManager) SignOut(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	sess.Live.Disconnect()
	sess.store.Reset()
	m.logger.Info("session closed", zap.String("user_id", userID))
}
