// Package notify は一時的なステータス通知の契約を提供する。
// ワークフロー層が pending → success/error のライフサイクルで通知を発行し、
// 描画の仕組み（トースト等）には関知しない。
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase は通知のライフサイクル段階を表す。
type Phase string

const (
	// PhasePending は非同期処理の開始を示す。
	PhasePending Phase = "pending"
	// PhaseSuccess は処理の成功による通知の完了を示す。
	PhaseSuccess Phase = "success"
	// PhaseError は処理の失敗による通知の完了を示す。
	PhaseError Phase = "error"
)

// Event は通知イベントを表す。
// 同一Tokenのイベントは1つのインジケーターを更新する
// （新しいインジケーターを積み重ねない）。
type Event struct {
	Token   string    `json:"token"`
	Phase   Phase     `json:"phase"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier は通知の発行インターフェース。
// ワークフロー層のみが呼び出す。
type Notifier interface {
	// Begin はpending通知を発行し、インジケーターのトークンを返す。
	Begin(message string) string
	// Pending は既存トークンのインジケーターを再びpendingにする。
	// 同じ操作の再実行がインジケーターを積み重ねず、1つを更新し続けるために使う。
	Pending(token, message string)
	// Success はトークンのインジケーターを成功で完了させる。
	Success(token, message string)
	// Error はトークンのインジケーターを失敗で完了させる。
	Error(token, message string)
}

// Hub はNotifierの実装。イベントを購読者へファンアウトし、ログにも記録する。
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	logger *slog.Logger
}

// Subscription は通知イベントの購読を表す。
type Subscription struct {
	// C は通知イベントの受信チャネル。
	C <-chan Event

	ch   chan Event
	hub  *Hub
	once sync.Once
}

// NewHub はHubの新しいインスタンスを生成する。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Begin はpending通知を発行し、トークンを返す。
func (h *Hub) Begin(message string) string {
	token := uuid.New().String()
	h.publish(Event{Token: token, Phase: PhasePending, Message: message, At: time.Now()})
	return token
}

// Pending は既存トークンのインジケーターを再びpendingにする。
func (h *Hub) Pending(token, message string) {
	h.publish(Event{Token: token, Phase: PhasePending, Message: message, At: time.Now()})
}

// Success はトークンのインジケーターを成功で完了させる。
func (h *Hub) Success(token, message string) {
	h.publish(Event{Token: token, Phase: PhaseSuccess, Message: message, At: time.Now()})
}

// Error はトークンのインジケーターを失敗で完了させる。
func (h *Hub) Error(token, message string) {
	h.publish(Event{Token: token, Phase: PhaseError, Message: message, At: time.Now()})
}

// Subscribe は通知イベントの購読を開始する。
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 16)
	sub := &Subscription{C: ch, ch: ch, hub: h}
	h.subs[sub] = struct{}{}
	return sub
}

// Close は購読を解除する。複数回呼んでも解除は1回だけ行われる。
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// publish はイベントを全購読者へ非ブロッキングで配信する。
// 受信が追いつかない購読者へのイベントは破棄する。
func (h *Hub) publish(e Event) {
	h.logger.Info("notification",
		slog.String("token", e.Token),
		slog.String("phase", string(e.Phase)),
		slog.String("message", e.Message),
	)

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
		}
	}
}
