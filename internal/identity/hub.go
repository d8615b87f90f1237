package identity

import (
	"sync"

	"github.com/hitoshi/craftsy/internal/model"
)

// Hub はセッション変化をプロセス全体へファンアウトする。
// 発行者（サインイン・サインアウト処理を持つ層）が1箇所から発行し、
// 購読者は最新スナップショットとそれ以降の全変化を受け取る。
// 隠れたグローバルではなく、依存として明示的に注入して使う。
type Hub struct {
	mu        sync.Mutex
	current   model.Session
	delivered bool // 初回イベントが発行済みかどうか
	subs      map[*Subscription]struct{}
}

// Subscription はHubの購読を表す。
// Cから最新のセッションスナップショットを受け取る。
type Subscription struct {
	// C はセッションスナップショットの受信チャネル。
	C <-chan model.Session

	ch   chan model.Session
	hub  *Hub
	once sync.Once
}

// NewHub はHubの新しいインスタンスを生成する。
// 初回イベントが発行されるまで、購読者には何も配信されない
// （購読側はその間Pendingとして扱う）。
func NewHub() *Hub {
	return &Hub{
		current: model.PendingSession(),
		subs:    make(map[*Subscription]struct{}),
	}
}

// Publish は新しいセッションスナップショットを全購読者へ配信する。
// 配信は非ブロッキングで、受信が追いつかない購読者には最新値のみが残る。
func (h *Hub) Publish(s model.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = s
	h.delivered = true

	for sub := range h.subs {
		sub.send(s)
	}
}

// Current は最新のセッションスナップショットを返す。
// 初回イベント未発行の間はPendingを返す。
func (h *Hub) Current() model.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Subscribe は新しい購読を開始する。
// 既に初回イベントが発行済みの場合は、現在のスナップショットが即座に配信される。
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.Session, 1)
	sub := &Subscription{C: ch, ch: ch, hub: h}
	h.subs[sub] = struct{}{}

	if h.delivered {
		sub.send(h.current)
	}
	return sub
}

// send は最新値のみを保持する非ブロッキング送信を行う。
func (s *Subscription) send(snapshot model.Session) {
	select {
	case s.ch <- snapshot:
	default:
		// バッファが埋まっている場合は古い値を捨てて最新値に置き換える
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snapshot
	}
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
