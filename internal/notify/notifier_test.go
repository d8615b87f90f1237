package notify

import (
	"bytes"
	"log/slog"
	"testing"
)

func newTestHub() *Hub {
	var buf bytes.Buffer
	return NewHub(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

func TestHub_Begin_ReturnsUniqueTokens(t *testing.T) {
	h := newTestHub()

	t1 := h.Begin("処理中...")
	t2 := h.Begin("処理中...")
	if t1 == "" || t2 == "" {
		t.Fatal("トークンが空")
	}
	if t1 == t2 {
		t.Errorf("トークンが重複した: %s", t1)
	}
}

func TestHub_Lifecycle_PendingThenSuccess(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe()
	defer sub.Close()

	token := h.Begin("注文を作成しています...")
	h.Success(token, "注文が完了しました")

	e1 := <-sub.C
	if e1.Phase != PhasePending || e1.Token != token {
		t.Errorf("1件目 = %+v, want pending/%s", e1, token)
	}
	e2 := <-sub.C
	if e2.Phase != PhaseSuccess || e2.Token != token {
		t.Errorf("2件目 = %+v, 同一トークンでsuccessになること", e2)
	}
}

func TestHub_Lifecycle_PendingThenError(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe()
	defer sub.Close()

	token := h.Begin("削除しています...")
	h.Error(token, "削除に失敗しました")

	<-sub.C
	e := <-sub.C
	if e.Phase != PhaseError || e.Token != token {
		t.Errorf("event = %+v, 同一トークンでerrorになること", e)
	}
}

// TestHub_Pending_ReusesToken は同じ操作の再実行が既存トークンの
// インジケーターを再利用することを検証する。
func TestHub_Pending_ReusesToken(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe()
	defer sub.Close()

	token := h.Begin("削除しています...")
	h.Error(token, "削除に失敗しました")
	h.Pending(token, "削除しています...")
	h.Success(token, "削除しました")

	phases := []Phase{PhasePending, PhaseError, PhasePending, PhaseSuccess}
	for i, want := range phases {
		e := <-sub.C
		if e.Phase != want || e.Token != token {
			t.Errorf("event[%d] = %+v, want phase=%s token=%s", i, e, want, token)
		}
	}
}

func TestHub_ClosedSubscription_ReceivesNothing(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe()
	sub.Close()
	sub.Close() // 冪等

	h.Begin("処理中...")

	if _, ok := <-sub.C; ok {
		t.Error("解除済みの購読チャネルはクローズされていること")
	}
}
