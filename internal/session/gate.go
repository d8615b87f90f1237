package session

import (
	"sync"

	"github.com/hitoshi/craftsy/internal/identity"
	"github.com/hitoshi/craftsy/internal/model"
)

// Policy はゲート対象ルートの入場ポリシーを表す。
type Policy int

const (
	// PolicyAnySession は認証済みセッションであれば入場を許可する。
	// emailVerifiedは問わない（注文管理・商品作成ルートで観測された挙動）。
	PolicyAnySession Policy = iota
	// PolicyVerifiedSession はメール確認済みのセッションのみ入場を許可する。
	// 未確認の認証済みセッションは利用不可として扱う。
	PolicyVerifiedSession
)

// Decision はゲートの判定結果を表す。
type Decision int

const (
	// DecisionAllow は入場を許可する。
	DecisionAllow Decision = iota
	// DecisionRedirect はログイン画面へのリダイレクトを指示する。
	DecisionRedirect
	// DecisionDefer は判定を保留する。初回イベント未到達のPending状態では
	// 許可もリダイレクトも行わず、何も描画させない。
	DecisionDefer
)

// LoginTarget はリダイレクト先のログイン画面パス。
const LoginTarget = "/login"

// Gate はIDストリームから3状態のセッションビューを導出し、
// ルートごとの入場ポリシーを適用する。
// Hubへの購読を1つだけ所有し、Closeで正確に1回解放する。
type Gate struct {
	mu      sync.Mutex
	current model.Session

	sub  *identity.Subscription
	done chan struct{}
	once sync.Once
}

// NewGate はHubを購読するGateを生成する。
// 初回イベントが届くまでCurrentはPendingを返す。
func NewGate(hub *identity.Hub) *Gate {
	g := &Gate{
		current: model.PendingSession(),
		sub:     hub.Subscribe(),
		done:    make(chan struct{}),
	}

	go func() {
		for {
			select {
			case s, ok := <-g.sub.C:
				if !ok {
					return
				}
				g.mu.Lock()
				g.current = s
				g.mu.Unlock()
			case <-g.done:
				return
			}
		}
	}()

	return g
}

// Current は最新のセッションスナップショットを返す。
func (g *Gate) Current() model.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Require はセッションにポリシーを適用し、入場可否を判定する。
// この判定はパニックせず、セッションの不在をエラーではなく通常の状態として扱う。
func (g *Gate) Require(s model.Session, policy Policy) (Decision, string) {
	switch s.State {
	case model.SessionPending:
		return DecisionDefer, ""
	case model.SessionAuthenticated:
		if policy == PolicyVerifiedSession && (s.Account == nil || !s.Account.EmailVerified) {
			return DecisionRedirect, LoginTarget
		}
		return DecisionAllow, ""
	default:
		return DecisionRedirect, LoginTarget
	}
}

// Close は購読を解放する。複数回呼んでも解放は正確に1回だけ行われる。
func (g *Gate) Close() {
	g.once.Do(func() {
		close(g.done)
		g.sub.Close()
	})
}
