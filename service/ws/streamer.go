package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"github.com/leandro-lugaresi/hub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/event"
	"github.com/quartzchat/quartz/router/extension/ctxkey"
	msgsvc "github.com/quartzchat/quartz/service/message"
	"github.com/quartzchat/quartz/service/ratelimit"
	"github.com/quartzchat/quartz/service/room"
	"github.com/quartzchat/quartz/service/unread"
	"github.com/quartzchat/quartz/utils/random"
)

var (
	// ErrAlreadyClosed 既に閉じられています
	ErrAlreadyClosed = errors.New("already closed")
	// ErrBufferIsFull 送信バッファが溢れました
	ErrBufferIsFull = errors.New("buffer is full")
)

var liveConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "quartz",
	Name:      "live_connections",
})

// Streamer WebSocketストリーマー
//
// コネクションのライフサイクルを管理します。認証はルーターの
// ミドルウェアで完了しており、ここに到達するリクエストのコンテキスト
// には認証済みユーザーの情報が入っています。
type Streamer struct {
	hub      *hub.Hub
	registry *room.Registry
	limiter  *ratelimit.Limiter
	manager  msgsvc.Manager
	ledger   *unread.Ledger
	logger   *zap.Logger
	sessions map[*session]struct{}
	closed   bool
	mu       sync.RWMutex
}

// NewStreamer WebSocketストリーマーを生成し起動します
func NewStreamer(h *hub.Hub, registry *room.Registry, limiter *ratelimit.Limiter, manager msgsvc.Manager, ledger *unread.Ledger, logger *zap.Logger) *Streamer {
	return &Streamer{
		hub:      h,
		registry: registry,
		limiter:  limiter,
		manager:  manager,
		ledger:   ledger,
		logger:   logger.Named("ws"),
		sessions: make(map[*session]struct{}),
		closed:   false,
	}
}

func (s *Streamer) register(session *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session] = struct{}{}
	liveConnectionsGauge.Inc()
}

func (s *Streamer) unregister(session *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
	liveConnectionsGauge.Dec()
}

// IterateSessions 全セッションをイテレートします
func (s *Streamer) IterateSessions(f func(session Session)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for session := range s.sessions {
		f(session)
	}
}

// SessionCount ライブなセッション数を取得します
func (s *Streamer) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// WriteMessage 対象セッションにイベントを書き込みます
func (s *Streamer) WriteMessage(t string, body interface{}, targetFunc TargetFunc) {
	m := &rawMessage{
		t:    websocket.TextMessage,
		data: makeMessage(t, body).toJSON(),
	}
	s.mu.RLock()
	for session := range s.sessions {
		if targetFunc(session) {
			if err := session.writeMessage(m); err != nil {
				if err == ErrBufferIsFull {
					s.logger.Warn("Discard a message because the session's buffer is full.",
						zap.String("type", t),
						zap.Stringer("userID", session.userID))
					continue
				}
			}
		}
	}
	s.mu.RUnlock()
}

// ServeHTTP http.Handlerインターフェイスの実装
func (s *Streamer) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	if s.closed {
		http.Error(rw, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	userID, ok := r.Context().Value(ctxkey.UserID).(uuid.UUID)
	if !ok {
		http.Error(rw, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	displayName, _ := r.Context().Value(ctxkey.UserDisplayName).(string)
	iconURL, _ := r.Context().Value(ctxkey.UserIconURL).(string)

	conn, err := upgrader.Upgrade(rw, r, rw.Header())
	if err != nil {
		return
	}

	session := &session{
		key:         random.AlphaNumeric(20),
		userID:      userID,
		displayName: displayName,
		iconURL:     iconURL,
		req:         r,
		conn:        conn,
		open:        true,
		streamer:    s,
		send:        make(chan *rawMessage, messageBufferSize),
	}

	s.register(session)
	s.hub.Publish(hub.Message{
		Name: event.WSConnected,
		Fields: hub.Fields{
			"user_id":     session.UserID(),
			"session_key": session.Key(),
		},
	})

	go session.writeLoop()
	session.readLoop()

	// 後始末は1論理単位として、ルーム→プレゼンスの順で必ず実行する
	s.registry.LeaveAll(session)
	s.hub.Publish(hub.Message{
		Name: event.WSDisconnected,
		Fields: hub.Fields{
			"user_id":     session.UserID(),
			"session_key": session.Key(),
		},
	})
	s.unregister(session)
	session.close()
}

// Close ストリーマーを停止します
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrAlreadyClosed
	}
	s.closed = true

	m := &rawMessage{
		t:    websocket.CloseMessage,
		data: websocket.FormatCloseMessage(websocket.CloseServiceRestart, "Server is stopping..."),
	}
	for session := range s.sessions {
		_ = session.writeMessage(m)
		session.close()
	}
	s.sessions = make(map[*session]struct{})
	return nil
}
